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


// Package backend defines the abstract contracts for the external services
// the pipeline consults.
//
// This package follows the dependency inversion principle: the orchestrator
// and resilience layers depend on these interfaces, never on a concrete
// provider. The concrete wire protocols live in sub-packages:
//
//   - backend/openai: generation, query analysis, and embeddings over
//     OpenAI-compatible APIs
//   - backend/tavily: web search over a Tavily-style REST API
//   - backend/mock: test doubles with injectable behavior
//
// All implementations must be safe for concurrent use.
package backend
