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

// Package openai provides the chat-completion client for OpenAI or any
// OpenAI-compatible service, built on langchaingo.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithToken(apiKey))
//	model, err := openai.NewChatModel(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	messages := ai.BuildMessages(openai.SystemPrompt(config), nil, "سلام")
//	resp, err := model.GenerateContent(ctx, messages, config.CallOptions()...)
package openai
