package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/hooshi"
	"github.com/poiesic/hooshi/ai"
	"github.com/poiesic/hooshi/ai/mock"
	"github.com/poiesic/hooshi/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeRecorder fails the first failures calls and keeps the rest.
type fakeRecorder struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	records  []*core.UsageRecord
}

func (f *fakeRecorder) RecordAPIUsage(ctx context.Context, record *core.UsageRecord) (core.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	record.ID = core.ID(len(f.records) + 1)
	f.records = append(f.records, record)
	return record.ID, nil
}

func fastRetry() Option {
	return WithRetry(3, time.Millisecond)
}

func TestRecordingModel_RecordsCompletion(t *testing.T) {
	model := mock.NewModel().WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		return mock.Response("قیمت‌ها در منطقه ۵ بین ۸۰ تا ۱۲۰ میلیون تومان برای هر متر است.", 1000, 500), nil
	})
	recorder := &fakeRecorder{}
	rm := NewRecordingModel(model, recorder, WithModelName("gpt-4-turbo"), fastRetry())

	ctx := WithConversation(context.Background(), 7)
	resp, err := rm.GenerateContent(ctx, ai.BuildMessages("system", nil, "قیمت؟"))
	require.NoError(t, err)
	assert.Contains(t, resp.Choices[0].Content, "منطقه ۵")

	require.Len(t, recorder.records, 1)
	r := recorder.records[0]
	assert.Equal(t, core.EndpointChat, r.Endpoint)
	assert.Equal(t, core.ResponseText, r.ResponseType)
	assert.Equal(t, "gpt-4-turbo", r.Model)
	assert.Equal(t, 1000, r.PromptTokens)
	assert.Equal(t, 500, r.CompletionTokens)
	assert.Equal(t, 1500, r.TotalTokens)
	assert.InDelta(t, 0.025, r.Cost, 1e-12)
	require.NotNil(t, r.ConversationID)
	assert.Equal(t, core.ID(7), *r.ConversationID)
	assert.Equal(t, 5, *r.RequestChars)
	assert.True(t, strings.HasPrefix(r.Notes, "Response time: "))
}

func TestRecordingModel_CallOptionModelWins(t *testing.T) {
	recorder := &fakeRecorder{}
	rm := NewRecordingModel(mock.NewModel(), recorder, WithModelName("gpt-4-turbo"), fastRetry())

	_, err := rm.Call(context.Background(), "سلام", llms.WithModel("gpt-3.5-turbo"))
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, "gpt-3.5-turbo", recorder.records[0].Model)
	assert.Nil(t, recorder.records[0].ConversationID)
}

func TestRecordingModel_RecordsFailure(t *testing.T) {
	wantErr := errors.New("401: invalid api key")
	model := mock.NewModel().WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		return nil, wantErr
	})
	recorder := &fakeRecorder{}
	rm := NewRecordingModel(model, recorder, WithModelName("gpt-4-turbo"), fastRetry())

	_, err := rm.GenerateContent(context.Background(), ai.BuildMessages("", nil, "سلام"))
	assert.ErrorIs(t, err, wantErr)

	require.Len(t, recorder.records, 1)
	r := recorder.records[0]
	assert.Equal(t, core.ResponseError, r.ResponseType)
	assert.Equal(t, wantErr.Error(), r.Error)
	assert.Zero(t, r.Cost)
	assert.Zero(t, r.TotalTokens)
}

func TestRecordingModel_RecordsSimulated(t *testing.T) {
	recorder := &fakeRecorder{}
	rm := NewRecordingModel(mock.NewSimulatedModel(ai.DefaultConfig()), recorder, fastRetry())
	assert.True(t, rm.Simulated())

	reply, err := rm.Call(context.Background(), "سلام خوبی؟")
	require.NoError(t, err)
	assert.Contains(t, reply, "هوشی")

	require.Len(t, recorder.records, 1)
	r := recorder.records[0]
	assert.Equal(t, core.ResponseSimulated, r.ResponseType)
	assert.Equal(t, SimulatedModel, r.Model)
	assert.Equal(t, 3, r.PromptTokens)
	assert.Equal(t, 5, r.CompletionTokens)
	assert.Zero(t, r.Cost)
}

func TestRecordingModel_RetriesRecording(t *testing.T) {
	recorder := &fakeRecorder{failures: 2, err: errors.New("disk full")}
	var handled int
	rm := NewRecordingModel(mock.NewModel(), recorder, fastRetry(),
		WithRecordErrorHandler(func(*core.UsageRecord, error) { handled++ }))

	_, err := rm.Call(context.Background(), "سلام")
	require.NoError(t, err)
	assert.Equal(t, 3, recorder.calls)
	assert.Len(t, recorder.records, 1)
	assert.Zero(t, handled)
}

func TestRecordingModel_ReportsLostRecord(t *testing.T) {
	recordErr := errors.New("disk full")
	recorder := &fakeRecorder{failures: 10, err: recordErr}

	var lost *core.UsageRecord
	var lostErr error
	rm := NewRecordingModel(mock.NewModel(), recorder, fastRetry(),
		WithRecordErrorHandler(func(r *core.UsageRecord, err error) {
			lost, lostErr = r, err
		}))

	reply, err := rm.Call(context.Background(), "سلام")
	require.NoError(t, err, "the completion is returned even if recording fails")
	assert.Equal(t, mock.DefaultReply, reply)

	assert.Equal(t, 3, recorder.calls)
	require.NotNil(t, lost)
	assert.Equal(t, core.ResponseText, lost.ResponseType)
	assert.Zero(t, lost.ID)
	assert.ErrorIs(t, lostErr, recordErr)
}

func TestRecordingModel_ValidationErrorNotRetried(t *testing.T) {
	recorder := &fakeRecorder{failures: 10, err: fmt.Errorf("%w: bad", core.ErrInvalidUsageRecord)}
	var handled int
	rm := NewRecordingModel(mock.NewModel(), recorder, fastRetry(),
		WithRecordErrorHandler(func(*core.UsageRecord, error) { handled++ }))

	_, err := rm.Call(context.Background(), "سلام")
	require.NoError(t, err)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, 1, handled)
}

func TestRecordingModel_RecordsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := mock.NewModel().WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		cancel()
		return nil, ctx.Err()
	})
	recorder := &fakeRecorder{}
	rm := NewRecordingModel(model, recorder, fastRetry())

	_, err := rm.GenerateContent(ctx, ai.BuildMessages("", nil, "سلام"))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, core.ResponseError, recorder.records[0].ResponseType)
}

func TestRecordingModel_WithDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := hooshi.NewDatabase("", hooshi.WithInitWait(100, 50*time.Millisecond))
	require.NoError(t, err)
	defer db.Close()

	convID, err := db.CreateConversation(ctx, "قیمت ملک")
	require.NoError(t, err)

	rm := NewRecordingModel(mock.NewModel().WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
		return mock.Response("پاسخ", 10, 20), nil
	}), db, WithModelName("gpt-4"))

	_, err = rm.GenerateContent(WithConversation(ctx, convID), ai.BuildMessages("", nil, "قیمت؟"))
	require.NoError(t, err)

	history, err := db.GetAPIUsageHistory(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.ID(1), history[0].ID)
	assert.Equal(t, 30, history[0].TotalTokens)
	assert.InDelta(t, ChatCost("gpt-4", 10, 20), history[0].Cost, 1e-12)
	assert.Equal(t, convID, *history[0].ConversationID)
}

func TestConversationFrom(t *testing.T) {
	_, ok := ConversationFrom(context.Background())
	assert.False(t, ok)

	id, ok := ConversationFrom(WithConversation(context.Background(), 3))
	assert.True(t, ok)
	assert.Equal(t, core.ID(3), id)
}
