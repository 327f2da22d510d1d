package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageSummary_Add(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 23, 59, 0, 0, time.UTC)

	records := []*UsageRecord{
		{Endpoint: EndpointChat, Model: "gpt-4-turbo", Timestamp: day1,
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Cost: 0.0025},
		{Endpoint: EndpointChat, Model: "gpt-4-turbo", Timestamp: day2,
			PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20, Cost: 0.0004},
		{Endpoint: EndpointSpeech, Model: "tts-1", Timestamp: day2,
			RequestChars: IntPtr(2000), DurationSeconds: FloatPtr(12.5), Cost: 0.03},
		{Endpoint: EndpointTranscription, Model: "", Timestamp: day1,
			RequestChars: IntPtr(99), DurationSeconds: FloatPtr(60), Cost: 0.006},
	}

	summary := NewUsageSummary(day1, day2)
	for _, r := range records {
		summary.Add(r)
	}

	assert.Equal(t, 4, summary.TotalRequests)
	assert.Equal(t, 170, summary.TotalTokens)
	assert.Equal(t, 110, summary.PromptTokens)
	assert.Equal(t, 60, summary.CompletionTokens)
	assert.InDelta(t, 0.0389, summary.TotalCost, 1e-9)
	assert.InDelta(t, 72.5, summary.AudioSeconds, 1e-9)
	// Only speech synthesis request characters count toward TTS chars
	assert.Equal(t, 2000, summary.TTSChars)

	require.Contains(t, summary.ByModel, "gpt-4-turbo")
	assert.Equal(t, 2, summary.ByModel["gpt-4-turbo"].Requests)
	assert.Equal(t, 170, summary.ByModel["gpt-4-turbo"].Tokens)
	require.Contains(t, summary.ByModel, UnknownModel)
	assert.Equal(t, 1, summary.ByModel[UnknownModel].Requests)

	require.Contains(t, summary.ByDate, "2025-03-01")
	require.Contains(t, summary.ByDate, "2025-03-02")
	assert.Equal(t, 2, summary.ByDate["2025-03-01"].Requests)
	assert.InDelta(t, 0.0085, summary.ByDate["2025-03-01"].Cost, 1e-9)
	assert.Equal(t, 20, summary.ByDate["2025-03-02"].Tokens)
}

func TestUsageSummary_DateKeyIsUTC(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	// 01:00 local on March 2nd is still March 1st in UTC
	ts := time.Date(2025, 3, 2, 1, 0, 0, 0, tehran)

	summary := NewUsageSummary(time.Time{}, time.Time{})
	summary.Add(&UsageRecord{Endpoint: EndpointChat, Timestamp: ts})

	assert.Contains(t, summary.ByDate, "2025-03-01")
}

func TestTimestamp(t *testing.T) {
	in := time.Date(2025, 1, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	out := Timestamp(in)

	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 123000000, out.Nanosecond())
	assert.True(t, out.Equal(in.Truncate(time.Millisecond)))
}

func TestConversationSummary(t *testing.T) {
	now := Now()
	c := &Conversation{ID: 7, Title: "قیمت ملک", CreatedAt: now, UpdatedAt: now}
	s := c.Summary()

	assert.Equal(t, ID(7), s.ID)
	assert.Equal(t, "قیمت ملک", s.Title)
	assert.Equal(t, now, s.UpdatedAt)
}
