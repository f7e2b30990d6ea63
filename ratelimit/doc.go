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


// Package ratelimit gates outbound calls to metered dependencies with
// per-client token buckets.
//
// Every client is tracked by two independent buckets: a short per-minute
// window and a longer per-hour window. Both must admit a request for it to
// proceed; whichever window rejects reports its own retry-after value.
// Buckets are created lazily on first use and garbage-collected once a
// client has been idle past a staleness threshold, so memory stays bounded
// under client churn.
package ratelimit
