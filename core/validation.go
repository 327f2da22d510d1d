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


package core

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest conversation title accepted, in runes.
const MaxTitleLength = 512

// ValidateTitle validates a conversation title.
// Empty titles are allowed; the UI replaces them with a placeholder.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: %w", ErrInvalidConversation, ErrTitleTooLong)
	}
	return nil
}

// ValidateMessage validates a Message according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - Role must be user or assistant
//
// NOT validated:
//   - ID and ConversationID (assigned and checked by storage)
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}

	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// NormalizeUsageRecord fills derived fields of a usage record before validation.
// A zero TotalTokens is computed from the prompt and completion counts and the
// legacy "mock" response kind is mapped to ResponseSimulated.
func NormalizeUsageRecord(record *UsageRecord) {
	if record == nil {
		return
	}
	if record.TotalTokens == 0 {
		record.TotalTokens = record.PromptTokens + record.CompletionTokens
	}
	if record.ResponseType == "mock" {
		record.ResponseType = ResponseSimulated
	}
}

// ValidateUsageRecord validates a UsageRecord according to domain rules.
//
// Validation rules:
//   - Endpoint must not be empty
//   - Cost must be finite and >= 0
//   - Token counts must be >= 0
//   - TotalTokens = PromptTokens + CompletionTokens unless the response is an error
//   - Timestamp must not be in the future
func ValidateUsageRecord(record *UsageRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidUsageRecord)
	}

	if record.Endpoint == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUsageRecord, ErrEmptyEndpoint)
	}

	if record.Cost < 0 || math.IsNaN(record.Cost) || math.IsInf(record.Cost, 0) {
		return fmt.Errorf("%w: %w", ErrInvalidUsageRecord, ErrNegativeCost)
	}

	if record.PromptTokens < 0 || record.CompletionTokens < 0 || record.TotalTokens < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidUsageRecord, ErrNegativeTokens)
	}

	if record.ResponseType != ResponseError &&
		record.TotalTokens != record.PromptTokens+record.CompletionTokens {
		return fmt.Errorf("%w: %w", ErrInvalidUsageRecord, ErrTokenMismatch)
	}

	if !IsValidTimestamp(record.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidUsageRecord, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
