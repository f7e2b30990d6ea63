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


// Package resilience wraps calls to unreliable dependencies with a
// cache check, a circuit breaker, bounded exponential-backoff retries,
// and an ordered fallback chain.
//
// A Chain reports which tier produced its result as a core.ServiceMode:
// a cache hit or a (possibly retried) primary success is Full, the first
// fallback is Degraded, and any later fallback is Minimal. When the
// primary and every fallback fail, the primary's final error is returned.
//
// The package also provides Registry, the single process-wide holder for
// the per-dependency circuit breakers and the shared per-client rate
// limiter. The registry is constructed once at startup and injected into
// the pipeline; nothing in this module relies on package-level state.
package resilience
