package usage

import (
	"math"
	"unicode/utf8"
)

// Price is the dollar cost per 1000 tokens.
type Price struct {
	Input  float64
	Output float64
}

// DefaultChatModel prices chat models missing from the table.
const DefaultChatModel = "gpt-3.5-turbo"

var chatPrices = map[string]Price{
	"gpt-4":                {Input: 0.03, Output: 0.06},
	"gpt-4-turbo":          {Input: 0.01, Output: 0.03},
	"gpt-4-vision-preview": {Input: 0.01, Output: 0.03},
	"gpt-4-32k":            {Input: 0.06, Output: 0.12},
	"gpt-3.5-turbo":        {Input: 0.0005, Output: 0.0015},
	"gpt-3.5-turbo-16k":    {Input: 0.001, Output: 0.002},
}

// Speech models and their dollar cost per 1000 characters.
const (
	SpeechModel   = "tts-1"
	SpeechModelHD = "tts-1-hd"
)

var speechPrices = map[string]float64{
	SpeechModel:   0.015,
	SpeechModelHD: 0.03,
}

// TranscriptionModel is the speech-to-text model.
const TranscriptionModel = "whisper-1"

// TranscriptionPerMinute is the dollar cost of one minute of audio.
const TranscriptionPerMinute = 0.006

// audioBytesPerSecond assumes 128 kbps audio.
const audioBytesPerSecond = 128 * 1024 / 8

// ChatPrice returns the price of model, falling back to DefaultChatModel.
// The second result is false when the fallback was used.
func ChatPrice(model string) (Price, bool) {
	if p, ok := chatPrices[model]; ok {
		return p, true
	}
	return chatPrices[DefaultChatModel], false
}

// ChatCost estimates the dollar cost of a chat completion.
func ChatCost(model string, promptTokens, completionTokens int) float64 {
	p, _ := ChatPrice(model)
	return float64(promptTokens)/1000*p.Input + float64(completionTokens)/1000*p.Output
}

// TranscriptionCost estimates the dollar cost of transcribing seconds of audio.
func TranscriptionCost(seconds float64) float64 {
	return seconds / 60 * TranscriptionPerMinute
}

// SpeechCost estimates the dollar cost of synthesizing chars characters.
// Unknown models are priced as SpeechModel.
func SpeechCost(model string, chars int) float64 {
	rate, ok := speechPrices[model]
	if !ok {
		rate = speechPrices[SpeechModel]
	}
	return float64(chars) / 1000 * rate
}

// EstimateAudioSeconds estimates the duration of an encoded audio clip.
func EstimateAudioSeconds(sizeBytes int64) float64 {
	return float64(sizeBytes) / audioBytesPerSecond
}

// EstimateSimulatedTokens estimates token counts for a locally simulated
// reply: one prompt token per four characters and a reply half again as long.
func EstimateSimulatedTokens(text string) (prompt, completion int) {
	prompt = int(math.Ceil(float64(utf8.RuneCountInString(text)) / 4))
	completion = int(math.Ceil(float64(prompt) * 1.5))
	return prompt, completion
}
