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
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by the pipeline and its dependencies.
// Backend errors wrap the matching sentinel with %w so callers can
// classify failures with errors.Is regardless of the concrete provider.
var (
	// ErrCircuitOpen indicates the dependency's circuit breaker rejected
	// the call without invoking it.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrVectorStore indicates a semantic-search backend failure.
	ErrVectorStore = errors.New("vector store error")

	// ErrSearchAPI indicates a web-search backend failure.
	ErrSearchAPI = errors.New("search api error")

	// ErrGeneration indicates a text-generation backend failure.
	ErrGeneration = errors.New("generation error")

	// ErrEmptyQuery indicates the caller supplied an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Domain validation errors
var (
	// ErrEmptyContent indicates the Contents field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidRole indicates an invalid MessageRole value.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptySessionId indicates the SessionId field is empty.
	ErrEmptySessionId = errors.New("session id cannot be empty")
)

// RateLimitError reports that a client exceeded one of the rate-limit
// windows. RetryAfter is the wait until the request would be admitted.
type RateLimitError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, retry after %s", e.Window, e.RetryAfter)
}

// AsRateLimitError unwraps err into a *RateLimitError if there is one.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
