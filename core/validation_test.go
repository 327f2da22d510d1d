package core

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr error
	}{
		{
			name:    "valid user message",
			msg:     &Message{ConversationID: 1, Role: RoleUser, Content: "قیمت؟"},
			wantErr: nil,
		},
		{
			name:    "valid assistant message",
			msg:     &Message{ConversationID: 1, Role: RoleAssistant, Content: "سلام"},
			wantErr: nil,
		},
		{
			name:    "valid message with ID 0",
			msg:     &Message{ID: 0, Role: RoleUser, Content: "hello"},
			wantErr: nil,
		},
		{
			name:    "nil message",
			msg:     nil,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "empty content",
			msg:     &Message{Role: RoleUser, Content: ""},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "system role is rejected",
			msg:     &Message{Role: Role("system"), Content: "be nice"},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMessage() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateMessage() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTitle(t *testing.T) {
	if err := ValidateTitle(""); err != nil {
		t.Errorf("empty title should be valid, got %v", err)
	}
	if err := ValidateTitle("گفتگوی جدید"); err != nil {
		t.Errorf("persian title should be valid, got %v", err)
	}

	long := strings.Repeat("ک", MaxTitleLength+1)
	err := ValidateTitle(long)
	if !errors.Is(err, ErrTitleTooLong) {
		t.Errorf("ValidateTitle() error = %v, want %v", err, ErrTitleTooLong)
	}
	if !IsValidationError(err) {
		t.Errorf("expected validation error classification for %v", err)
	}
}

func TestValidateUsageRecord(t *testing.T) {
	past := time.Now().Add(-1 * time.Hour)
	future := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		record  *UsageRecord
		wantErr error
	}{
		{
			name: "valid chat record",
			record: &UsageRecord{
				Endpoint: EndpointChat, ResponseType: ResponseText, Model: "gpt-4-turbo",
				PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, Cost: 0.0007, Timestamp: past,
			},
		},
		{
			name: "error record may carry zero totals",
			record: &UsageRecord{
				Endpoint: EndpointChat, ResponseType: ResponseError, Model: "gpt-4-turbo",
				PromptTokens: 5, Error: "500: boom", Timestamp: past,
			},
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidUsageRecord,
		},
		{
			name:    "missing endpoint",
			record:  &UsageRecord{Timestamp: past},
			wantErr: ErrEmptyEndpoint,
		},
		{
			name:    "negative cost",
			record:  &UsageRecord{Endpoint: EndpointChat, Cost: -1, Timestamp: past},
			wantErr: ErrNegativeCost,
		},
		{
			name:    "NaN cost",
			record:  &UsageRecord{Endpoint: EndpointChat, Cost: math.NaN(), Timestamp: past},
			wantErr: ErrNegativeCost,
		},
		{
			name:    "negative tokens",
			record:  &UsageRecord{Endpoint: EndpointChat, PromptTokens: -1, Timestamp: past},
			wantErr: ErrNegativeTokens,
		},
		{
			name: "token mismatch",
			record: &UsageRecord{
				Endpoint: EndpointChat, ResponseType: ResponseText,
				PromptTokens: 1, CompletionTokens: 1, TotalTokens: 5, Timestamp: past,
			},
			wantErr: ErrTokenMismatch,
		},
		{
			name:    "future timestamp",
			record:  &UsageRecord{Endpoint: EndpointChat, Timestamp: future},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsageRecord(tt.record)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateUsageRecord() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUsageRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeUsageRecord(t *testing.T) {
	record := &UsageRecord{PromptTokens: 3, CompletionTokens: 5, ResponseType: "mock"}
	NormalizeUsageRecord(record)

	if record.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want 8", record.TotalTokens)
	}
	if record.ResponseType != ResponseSimulated {
		t.Errorf("ResponseType = %q, want %q", record.ResponseType, ResponseSimulated)
	}

	// Explicit totals are left alone
	record = &UsageRecord{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 9}
	NormalizeUsageRecord(record)
	if record.TotalTokens != 9 {
		t.Errorf("TotalTokens = %d, want 9", record.TotalTokens)
	}

	NormalizeUsageRecord(nil)
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now().Add(-time.Minute)) {
		t.Error("past timestamp should be valid")
	}
	if IsValidTimestamp(time.Now().Add(time.Hour)) {
		t.Error("future timestamp should be invalid")
	}
}
