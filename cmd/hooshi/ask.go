package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/hooshi"
	"github.com/poiesic/hooshi/ai"
	"github.com/poiesic/hooshi/ai/mock"
	"github.com/poiesic/hooshi/ai/openai"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/usage"
	"github.com/tmc/langchaingo/llms"
	"github.com/urfave/cli/v2"
)

const titleRunes = 40

// newChatModel returns the configured chat model, or the simulated
// assistant when no API key is set.
func newChatModel(cfg *ai.Config) (llms.Model, error) {
	model, err := openai.NewChatModel(cfg)
	if errors.Is(err, ai.ErrMissingToken) {
		slog.Info("no API key configured, using simulated assistant")
		return mock.NewSimulatedModel(cfg), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return model, nil
}

func askCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return errors.New("message is required")
	}

	chatCfg := configFrom(c).ChatConfig()
	model, err := newChatModel(chatCfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	reply, convID, err := ask(c.Context, db, model, chatCfg, core.ID(c.Uint64("conversation")), text)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "[%d] %s\n", convID, reply)
	return nil
}

// ask runs one chat turn: it stores the user message, asks the model with the
// conversation so far and stores the reply. A zero convID starts a new
// conversation titled after the message.
func ask(ctx context.Context, db *hooshi.Database, model llms.Model, cfg *ai.Config, convID core.ID, text string) (string, core.ID, error) {
	var history []*core.Message
	if convID == 0 {
		id, err := db.CreateConversation(ctx, conversationTitle(text))
		if err != nil {
			return "", 0, fmt.Errorf("failed to create conversation: %w", err)
		}
		convID = id
	} else {
		detail, err := db.GetConversationByID(ctx, convID)
		if err != nil {
			return "", 0, fmt.Errorf("failed to load conversation %d: %w", convID, err)
		}
		history = detail.Messages
	}

	if _, err := db.SaveMessage(ctx, convID, core.RoleUser, text); err != nil {
		return "", 0, fmt.Errorf("failed to save message: %w", err)
	}

	recorder := usage.NewRecordingModel(model, db,
		usage.WithModelName(cfg.Model),
		usage.WithLogger(slog.Default()),
	)
	messages := ai.BuildMessages(openai.SystemPrompt(cfg), history, text)
	resp, err := recorder.GenerateContent(usage.WithConversation(ctx, convID), messages, cfg.CallOptions()...)
	if err != nil {
		return "", convID, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", convID, errors.New("chat completion returned no content")
	}

	reply := resp.Choices[0].Content
	if _, err := db.SaveMessage(ctx, convID, core.RoleAssistant, reply); err != nil {
		return "", convID, fmt.Errorf("failed to save reply: %w", err)
	}
	return reply, convID, nil
}

func conversationTitle(text string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= titleRunes {
		return string(runes)
	}
	return string(runes[:titleRunes-3]) + "..."
}
