package mock

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/hooshi/ai"
	"github.com/tmc/langchaingo/llms"
)

var (
	namePattern = regexp.MustCompile(`من\s+(\S+)\s+هستم|اسمم\s+(\S+)\s+است`)
	areaPattern = regexp.MustCompile(`(منطقه|محله|ناحیه|شهرک)\s+(\d+|\S+)`)
)

// NewSimulatedModel returns a model that answers real-estate questions from
// a few keyword rules, for sessions without an API key. Its responses carry
// no token counts.
func NewSimulatedModel(config *ai.Config) *Model {
	m := &Model{Simulate: true}
	m.GenerateFunc = func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		return &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{
				Content:    simulatedReply(config, messages),
				StopReason: "stop",
			}},
		}, nil
	}
	return m
}

func simulatedReply(config *ai.Config, messages []llms.MessageContent) string {
	userName := "عزیز"
	assistant := config.AssistantName
	if assistant == "" {
		assistant = ai.DefaultConfig().AssistantName
	}

	history := messages
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	var area string
	if config.PrioritizeMemory {
		for _, msg := range history {
			if msg.Role != llms.ChatMessageTypeHuman {
				continue
			}
			text := ai.MessageText(msg)
			if m := namePattern.FindStringSubmatch(text); m != nil {
				userName = firstNonEmpty(m[1:]...)
			}
			if m := areaPattern.FindStringSubmatch(text); m != nil {
				area = m[1] + " " + m[2]
			}
		}
	}

	input := strings.ToLower(ai.LastUserText(messages))
	switch {
	case strings.Contains(input, "سلام") || strings.Contains(input, "خوبی"):
		return fmt.Sprintf("👋 سلام %s! من %s، دستیار املاک تو هستم. چطور می‌تونم امروز کمکت کنم؟", userName, assistant)
	case strings.Contains(input, "قیمت") || strings.Contains(input, "هزینه"):
		if area != "" {
			return fmt.Sprintf("💰 %s جان، قیمت‌ها تو %s به متراژ، سن بنا و امکانات بستگی داره. بودجه‌ت حدوداً چقدره؟", userName, area)
		}
		return fmt.Sprintf("💰 %s جان، قیمت ملک به منطقه، متراژ و سن بنا بستگی داره. بگو کدوم منطقه رو در نظر داری؟", userName)
	case strings.Contains(input, "اجاره") || strings.Contains(input, "رهن"):
		return fmt.Sprintf("🏠 %s جان، برای رهن و اجاره بگو چقدر ودیعه و اجاره ماهانه در نظر داری تا گزینه‌های مناسب رو بگم.", userName)
	case strings.Contains(input, "خرید") || strings.Contains(input, "فروش"):
		return fmt.Sprintf("📋 %s جان، برای خرید و فروش قبل از هر چیز سند و استعلام‌ها رو چک کن. دنبال چه نوع ملکی هستی؟", userName)
	}
	return fmt.Sprintf("🤔 %s جان، بیشتر توضیح بده تا بهتر راهنماییت کنم. دنبال خرید، فروش یا اجاره هستی؟", userName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
