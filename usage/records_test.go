package usage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	short := "قیمت آپارتمان در تهران"
	assert.Equal(t, short, Summarize(short))

	long := strings.Repeat("م", 150)
	got := Summarize(long)
	assert.Equal(t, 100, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestChatRecord(t *testing.T) {
	convID := core.IDPtr(7)
	r := ChatRecord(convID, "gpt-4-turbo", "سلام", "سلام! چطوری؟", 100, 50, 1250*time.Millisecond)

	assert.Equal(t, core.EndpointChat, r.Endpoint)
	assert.Equal(t, core.ResponseText, r.ResponseType)
	assert.Equal(t, 150, r.TotalTokens)
	assert.InDelta(t, 0.0025, r.Cost, 1e-12)
	assert.Equal(t, 4, *r.RequestChars)
	assert.Equal(t, core.ID(7), *r.ConversationID)
	assert.True(t, strings.HasPrefix(r.Notes, "Response time: 1250ms"))
	require.NoError(t, core.ValidateUsageRecord(r))
}

func TestChatErrorRecord(t *testing.T) {
	r := ChatErrorRecord(nil, "gpt-4-turbo", "سلام", errors.New("429: rate limited"))

	assert.Equal(t, core.ResponseError, r.ResponseType)
	assert.Equal(t, "429: rate limited", r.Error)
	assert.Zero(t, r.Cost)
	assert.Nil(t, r.ConversationID)
	require.NoError(t, core.ValidateUsageRecord(r))
}

func TestSimulatedChatRecord(t *testing.T) {
	r := SimulatedChatRecord(core.IDPtr(1), "قیمت آپارتمان")

	assert.Equal(t, core.ResponseSimulated, r.ResponseType)
	assert.Equal(t, SimulatedModel, r.Model)
	assert.Equal(t, 4, r.PromptTokens)
	assert.Equal(t, 6, r.CompletionTokens)
	assert.Equal(t, 10, r.TotalTokens)
	assert.Zero(t, r.Cost)
	require.NoError(t, core.ValidateUsageRecord(r))
}

func TestTranscriptionRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := TranscriptionRecord(nil, 16384*30, "سلام", time.Second, nil)
		assert.Equal(t, core.EndpointTranscription, r.Endpoint)
		assert.InDelta(t, 30.0, *r.DurationSeconds, 1e-9)
		assert.InDelta(t, 0.003, r.Cost, 1e-12)
		assert.Equal(t, 4, *r.ResponseChars)
		require.NoError(t, core.ValidateUsageRecord(r))
	})

	t.Run("failure", func(t *testing.T) {
		r := TranscriptionRecord(nil, 16384, "", time.Second, errors.New("timeout"))
		assert.Equal(t, core.ResponseError, r.ResponseType)
		assert.Zero(t, r.Cost)
		assert.InDelta(t, 1.0, *r.DurationSeconds, 1e-9)
	})
}

func TestSpeechRecord(t *testing.T) {
	text := strings.Repeat("ا", 200)

	r := SpeechRecord(core.IDPtr(3), SpeechModel, text, time.Second, nil)
	assert.Equal(t, core.EndpointSpeech, r.Endpoint)
	assert.Equal(t, core.ResponseAudio, r.ResponseType)
	assert.Equal(t, 200, *r.RequestChars)
	assert.InDelta(t, 0.003, r.Cost, 1e-12)
	require.NoError(t, core.ValidateUsageRecord(r))

	r = SpeechRecord(nil, SpeechModelHD, text, time.Second, errors.New("quota"))
	assert.Equal(t, core.ResponseError, r.ResponseType)
	assert.Zero(t, r.Cost)
	assert.Equal(t, 200, *r.RequestChars)
}
