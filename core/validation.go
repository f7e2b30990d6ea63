// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"time"
)

// Validate checks a Document for storage.
// Content must be non-empty and timestamps must not be in the future.
func (d *Document) Validate() error {
	if d.Content == "" {
		return ErrEmptyContent
	}
	now := time.Now()
	if !d.PublishedAt.IsZero() && d.PublishedAt.After(now) {
		return fmt.Errorf("%w: published at %s", ErrInvalidTimestamp, d.PublishedAt)
	}
	return nil
}

// Validate checks a HistoryEntry for storage.
func (e *HistoryEntry) Validate() error {
	if e.SessionId == "" {
		return ErrEmptySessionId
	}
	if e.Contents == "" {
		return ErrEmptyContent
	}
	if e.Role != RoleUser && e.Role != RoleAssistant && e.Role != RoleSystem {
		return fmt.Errorf("%w: %d", ErrInvalidRole, e.Role)
	}
	if e.Timestamp.After(time.Now()) {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, e.Timestamp)
	}
	return nil
}
