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


// Package mock provides test doubles for the backend contracts.
//
// Every mock exposes function fields for injecting custom behavior and
// counts its calls for test assertions. The defaults are deterministic:
// the embedder derives vectors from a text hash, the analyzer classifies
// by keyword, the generator echoes a canned completion, and the retrieval
// mocks return fixed fixtures.
package mock
