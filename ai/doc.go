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

// Package ai configures the chat-completion service behind the hooshi
// assistant.
//
// Models are plain langchaingo llms.Model values so they can be wrapped by
// usage.RecordingModel, which records the cost of every call.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible client and the assistant's system prompt
//   - ai/mock: scriptable test double and the local simulated assistant
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithToken(os.Getenv("OPENAI_API_KEY")))
//	model, err := openai.NewChatModel(cfg)
//	if errors.Is(err, ai.ErrMissingToken) {
//	    model = mock.NewSimulatedModel(cfg)
//	}
//	messages := ai.BuildMessages(openai.SystemPrompt(cfg), history, "قیمت آپارتمان در تهران؟")
//	resp, err := model.GenerateContent(ctx, messages, cfg.CallOptions()...)
package ai

import "errors"

// ErrMissingToken indicates no API key is configured.
var ErrMissingToken = errors.New("ai config: Token is required")
