package core

import "time"

// UnknownModel buckets usage records that carry no model identifier.
const UnknownModel = "unknown"

// DateLayout is the calendar-day key format of UsageSummary.ByDate.
const DateLayout = "2006-01-02"

// UsageBucket aggregates a slice of usage records.
type UsageBucket struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// UsageSummary aggregates usage records over a time range.
type UsageSummary struct {
	Start            time.Time               `json:"start"`
	End              time.Time               `json:"end"`
	TotalRequests    int                     `json:"total_requests"`
	TotalTokens      int                     `json:"total_tokens"`
	TotalCost        float64                 `json:"total_cost"`
	PromptTokens     int                     `json:"prompt_tokens"`
	CompletionTokens int                     `json:"completion_tokens"`
	AudioSeconds     float64                 `json:"audio_seconds"`
	TTSChars         int                     `json:"tts_chars"`
	ByModel          map[string]*UsageBucket `json:"by_model"`
	ByDate           map[string]*UsageBucket `json:"by_date"`
}

// NewUsageSummary returns an empty summary for the range [start, end].
func NewUsageSummary(start, end time.Time) *UsageSummary {
	return &UsageSummary{
		Start:   start,
		End:     end,
		ByModel: make(map[string]*UsageBucket),
		ByDate:  make(map[string]*UsageBucket),
	}
}

// Add folds one record into the summary.
func (s *UsageSummary) Add(record *UsageRecord) {
	s.TotalRequests++
	s.TotalTokens += record.TotalTokens
	s.TotalCost += record.Cost
	s.PromptTokens += record.PromptTokens
	s.CompletionTokens += record.CompletionTokens
	if record.DurationSeconds != nil {
		s.AudioSeconds += *record.DurationSeconds
	}
	if record.Endpoint == EndpointSpeech && record.RequestChars != nil {
		s.TTSChars += *record.RequestChars
	}

	model := record.Model
	if model == "" {
		model = UnknownModel
	}
	addToBucket(s.ByModel, model, record)
	addToBucket(s.ByDate, record.Timestamp.UTC().Format(DateLayout), record)
}

func addToBucket(buckets map[string]*UsageBucket, key string, record *UsageRecord) {
	b, ok := buckets[key]
	if !ok {
		b = &UsageBucket{}
		buckets[key] = b
	}
	b.Requests++
	b.Tokens += record.TotalTokens
	b.Cost += record.Cost
}
