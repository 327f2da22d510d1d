package usage

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/poiesic/hooshi/core"
)

// SimulatedModel is the model tag of records for locally simulated replies.
const SimulatedModel = "simulated"

// Request types.
const (
	RequestText  = "text"
	RequestAudio = "audio"
)

const summaryLength = 100

// Summarize shortens s to at most 100 characters for record notes.
func Summarize(s string) string {
	if utf8.RuneCountInString(s) <= summaryLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:summaryLength-3]) + "..."
}

// ChatRecord describes a completed chat completion.
func ChatRecord(conversationID *core.ID, model, request, response string, promptTokens, completionTokens int, elapsed time.Duration) *core.UsageRecord {
	return &core.UsageRecord{
		Endpoint:         core.EndpointChat,
		RequestType:      RequestText,
		ResponseType:     core.ResponseText,
		ConversationID:   conversationID,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		RequestChars:     core.IntPtr(utf8.RuneCountInString(request)),
		ResponseChars:    core.IntPtr(utf8.RuneCountInString(response)),
		Model:            model,
		Cost:             ChatCost(model, promptTokens, completionTokens),
		Notes: fmt.Sprintf(`Response time: %dms | Request: "%s" | Response: "%s"`,
			elapsed.Milliseconds(), Summarize(request), Summarize(response)),
	}
}

// ChatErrorRecord describes a failed chat completion.
func ChatErrorRecord(conversationID *core.ID, model, request string, err error) *core.UsageRecord {
	return &core.UsageRecord{
		Endpoint:       core.EndpointChat,
		RequestType:    RequestText,
		ResponseType:   core.ResponseError,
		ConversationID: conversationID,
		RequestChars:   core.IntPtr(utf8.RuneCountInString(request)),
		Model:          model,
		Error:          err.Error(),
	}
}

// SimulatedChatRecord describes a reply produced without calling the service.
func SimulatedChatRecord(conversationID *core.ID, request string) *core.UsageRecord {
	prompt, completion := EstimateSimulatedTokens(request)
	return &core.UsageRecord{
		Endpoint:         core.EndpointChat,
		RequestType:      RequestText,
		ResponseType:     core.ResponseSimulated,
		ConversationID:   conversationID,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		RequestChars:     core.IntPtr(utf8.RuneCountInString(request)),
		Model:            SimulatedModel,
		Notes:            "Simulated response (no API call)",
	}
}

// TranscriptionRecord describes a speech-to-text call on an audio clip of
// sizeBytes. A non-nil err records the failure at no cost.
func TranscriptionRecord(conversationID *core.ID, sizeBytes int64, transcript string, elapsed time.Duration, err error) *core.UsageRecord {
	seconds := EstimateAudioSeconds(sizeBytes)
	record := &core.UsageRecord{
		Endpoint:        core.EndpointTranscription,
		RequestType:     RequestAudio,
		ResponseType:    core.ResponseText,
		ConversationID:  conversationID,
		DurationSeconds: core.FloatPtr(seconds),
		Model:           TranscriptionModel,
	}
	if err != nil {
		record.ResponseType = core.ResponseError
		record.Error = err.Error()
		return record
	}
	record.RequestChars = core.IntPtr(0)
	record.ResponseChars = core.IntPtr(utf8.RuneCountInString(transcript))
	record.Cost = TranscriptionCost(seconds)
	record.Notes = fmt.Sprintf("Response time: %dms | Audio size: %d bytes", elapsed.Milliseconds(), sizeBytes)
	return record
}

// SpeechRecord describes a text-to-speech call. A non-nil err records the
// failure at no cost.
func SpeechRecord(conversationID *core.ID, model, text string, elapsed time.Duration, err error) *core.UsageRecord {
	chars := utf8.RuneCountInString(text)
	record := &core.UsageRecord{
		Endpoint:       core.EndpointSpeech,
		RequestType:    RequestText,
		ResponseType:   core.ResponseAudio,
		ConversationID: conversationID,
		RequestChars:   core.IntPtr(chars),
		Model:          model,
	}
	if err != nil {
		record.ResponseType = core.ResponseError
		record.Error = err.Error()
		return record
	}
	record.Cost = SpeechCost(model, chars)
	record.Notes = fmt.Sprintf("Response time: %dms | Text: \"%s\"", elapsed.Milliseconds(), Summarize(text))
	return record
}
