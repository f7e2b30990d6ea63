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


// Package breaker isolates failing dependencies with a three-state
// circuit breaker.
//
// A breaker starts Closed and passes calls through, counting consecutive
// failures (a success decrements the counter, floor zero). Reaching the
// failure threshold opens the circuit: calls are rejected immediately with
// core.ErrCircuitOpen and the wrapped function is never invoked. Once the
// recovery timeout has elapsed since the last failure, the next call runs
// as a half-open trial; a configured number of consecutive successes closes
// the circuit again, while any single failure reopens it.
//
// The pipeline keeps one breaker per downstream dependency (vector store,
// web search, generation), each independently configured.
package breaker
