package openai

import (
	"testing"

	"github.com/poiesic/hooshi/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatModel(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		model, err := NewChatModel(ai.NewConfig())
		assert.ErrorIs(t, err, ai.ErrMissingToken)
		assert.Nil(t, model)
	})

	t.Run("invalid config", func(t *testing.T) {
		model, err := NewChatModel(ai.NewConfig(ai.WithToken("sk-test"), ai.WithModel("")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Model")
		assert.Nil(t, model)
	})

	t.Run("with token", func(t *testing.T) {
		model, err := NewChatModel(ai.NewConfig(
			ai.WithToken("sk-test"),
			ai.WithHost("http://localhost:11434"),
		))
		require.NoError(t, err)
		assert.NotNil(t, model)
	})
}

func TestSystemPrompt(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		prompt := SystemPrompt(&ai.Config{})
		assert.Contains(t, prompt, "شما هوشی")
		assert.Contains(t, prompt, `"کاربر"`)
		assert.NotContains(t, prompt, "حافظه")
	})

	t.Run("custom names and memory", func(t *testing.T) {
		prompt := SystemPrompt(ai.NewConfig(
			ai.WithNames("مشاور", "علی"),
			ai.WithPrioritizeMemory(true),
		))
		assert.Contains(t, prompt, "شما مشاور")
		assert.Contains(t, prompt, `"علی"`)
		assert.Contains(t, prompt, "حافظه")
	})
}
