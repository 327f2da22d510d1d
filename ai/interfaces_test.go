package ai

import (
	"testing"

	"github.com/poiesic/hooshi/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestBuildMessages(t *testing.T) {
	history := []*core.Message{
		{ID: 1, Role: core.RoleUser, Content: "سلام"},
		{ID: 2, Role: core.RoleAssistant, Content: "سلام! چطور کمکت کنم؟"},
	}

	messages := BuildMessages("system", history, "قیمت آپارتمان؟")
	require.Len(t, messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	assert.Equal(t, "سلام! چطور کمکت کنم؟", MessageText(messages[2]))
	assert.Equal(t, "قیمت آپارتمان؟", LastUserText(messages))

	t.Run("without system prompt", func(t *testing.T) {
		messages := BuildMessages("", nil, "x")
		require.Len(t, messages, 1)
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[0].Role)
	})
}

func TestLastUserText_NoHumanMessage(t *testing.T) {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, "system")}
	assert.Empty(t, LastUserText(messages))
}

type simulatedModel struct {
	llms.Model
}

func (simulatedModel) Simulated() bool { return true }

func TestIsSimulated(t *testing.T) {
	assert.True(t, IsSimulated(simulatedModel{}))
	assert.False(t, IsSimulated(nil))
}
