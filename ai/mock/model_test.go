package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/hooshi/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestModel_Default(t *testing.T) {
	m := NewModel()
	resp, err := m.GenerateContent(context.Background(), ai.BuildMessages("", nil, "سلام"))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, DefaultReply, resp.Choices[0].Content)
	assert.Equal(t, 4, resp.Choices[0].GenerationInfo["PromptTokens"])
	assert.Equal(t, 1, m.CallCount())
	assert.False(t, m.Simulated())
}

func TestModel_GenerateFunc(t *testing.T) {
	wantErr := errors.New("rate limited")
	m := NewModel().WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		return nil, wantErr
	})

	_, err := m.Call(context.Background(), "قیمت؟")
	assert.ErrorIs(t, err, wantErr)
	require.Len(t, m.LastMessages(), 1)
	assert.Equal(t, "قیمت؟", ai.MessageText(m.LastMessages()[0]))

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.LastMessages())
}

func TestSimulatedModel(t *testing.T) {
	ctx := context.Background()
	cfg := ai.NewConfig(ai.WithPrioritizeMemory(true))
	m := NewSimulatedModel(cfg)
	assert.True(t, m.Simulated())
	assert.True(t, ai.IsSimulated(m))

	tests := []struct {
		name    string
		history []llms.MessageContent
		input   string
		want    string
	}{
		{"greeting", nil, "سلام خوبی؟", "من هوشی"},
		{"price", nil, "قیمت آپارتمان چنده؟", "💰"},
		{"rent", nil, "دنبال رهن و اجاره هستم", "🏠"},
		{"fallback", nil, "هوا چطوره؟", "🤔"},
		{
			"remembers name and area",
			[]llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeHuman, "من رضا هستم"),
				llms.TextParts(llms.ChatMessageTypeHuman, "دنبال خونه در منطقه 5 هستم"),
			},
			"قیمت چطوره؟",
			"رضا جان، قیمت‌ها تو منطقه 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := append(tt.history, llms.TextParts(llms.ChatMessageTypeHuman, tt.input))
			reply, err := m.GenerateContent(ctx, messages)
			require.NoError(t, err)
			assert.Contains(t, reply.Choices[0].Content, tt.want)
			assert.Empty(t, reply.Choices[0].GenerationInfo)
		})
	}
}
