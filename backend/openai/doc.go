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


// Package openai implements the backend contracts using OpenAI-compatible
// APIs via langchaingo.
//
// It provides response generation (with streaming), structured-output
// query analysis, and text embeddings. Query analysis asks the model for
// JSON in a fixed schema, repairs common formatting mistakes, and retries
// parsing a few times before giving up; callers treat an analysis failure
// as a soft error and fall back to a general classification.
//
// Works with any OpenAI-compatible server, including local ones (Ollama,
// llama.cpp) that ignore the API token.
package openai
