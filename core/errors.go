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

import "errors"

// Domain validation errors
var (
	// ErrInvalidConversation indicates a Conversation failed validation.
	ErrInvalidConversation = errors.New("invalid conversation")

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidUsageRecord indicates a UsageRecord failed validation.
	ErrInvalidUsageRecord = errors.New("invalid usage record")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates the message content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an unknown message role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrTitleTooLong indicates a conversation title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("title too long")

	// ErrNegativeCost indicates a negative or non-finite cost.
	ErrNegativeCost = errors.New("cost must be a non-negative number")

	// ErrNegativeTokens indicates a negative token count.
	ErrNegativeTokens = errors.New("token counts cannot be negative")

	// ErrTokenMismatch indicates total tokens differ from prompt + completion.
	ErrTokenMismatch = errors.New("total tokens must equal prompt + completion tokens")

	// ErrEmptyEndpoint indicates the endpoint tag is missing.
	ErrEmptyEndpoint = errors.New("endpoint cannot be empty")
)

// IsValidationError reports whether err came from domain validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidConversation) ||
		errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrInvalidUsageRecord)
}
