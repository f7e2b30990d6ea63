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


// Package pipeline implements the query orchestrator: a fixed state
// machine that analyzes a query, routes it to the knowledge store and/or
// the web-search backend, ranks the retrieved context, and generates a
// response.
//
// The stages run in a fixed order: analyze, route, retrieve, rank,
// generate, format. When the router selects both retrieval sources they
// run concurrently over a worker pool and fail independently.
//
// Every outbound call is guarded by the resilience layer (circuit
// breaker, bounded retries, result cache). The orchestrator itself never
// returns an error past its entry gates: classification failures fall
// back to a general route, retrieval failures degrade to the other
// source or to generation without context, and generation failures
// produce a fixed apology. Each result carries the ServiceMode and
// metadata describing which stages degraded.
package pipeline
