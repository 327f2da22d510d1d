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

// Package usage prices AI service calls and records them as usage records.
//
// Pricing follows the published per-1K-token rates for the chat models the
// assistant uses, per-minute rates for transcription and per-1K-character
// rates for speech. RecordingModel wraps any langchaingo model and writes
// exactly one usage record per completion, successful or not.
//
// # Usage
//
//	model := usage.NewRecordingModel(client, db, usage.WithModelName("gpt-4-turbo"))
//	ctx = usage.WithConversation(ctx, conversationID)
//	resp, err := model.GenerateContent(ctx, messages)
package usage
