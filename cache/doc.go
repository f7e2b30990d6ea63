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


// Package cache provides a bounded keyed store with per-entry expiry and
// least-recently-used eviction.
//
// Entries expire lazily: an expired entry is removed the first time it is
// looked up, and counts as a miss. When the cache is at capacity, inserting
// a new key evicts the least-recently-accessed entry first.
//
// A single mutex guards the whole structure. The pipeline keeps three
// independently configured instances (semantic-search results, web-search
// results, generation outputs) that differ only in size and default TTL.
package cache
