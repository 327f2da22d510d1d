// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/hooshi/core"
)

// Records are encoded field by field with mus-go in declaration order.
// Timestamps are Unix microseconds; optional fields carry a presence flag.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalConversation serializes a Conversation to bytes.
func MarshalConversation(conv *core.Conversation) []byte {
	var w writer
	w.uint64(uint64(conv.ID))
	w.string(conv.Title)
	w.time(conv.CreatedAt)
	w.time(conv.UpdatedAt)
	return w.bs
}

// UnmarshalConversation deserializes a Conversation from bytes.
func UnmarshalConversation(data []byte) (*core.Conversation, error) {
	r := reader{bs: data}
	conv := &core.Conversation{
		ID:        core.ID(r.uint64()),
		Title:     r.string(),
		CreatedAt: r.time(),
		UpdatedAt: r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return conv, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(msg *core.Message) []byte {
	var w writer
	w.uint64(uint64(msg.ID))
	w.uint64(uint64(msg.ConversationID))
	w.string(string(msg.Role))
	w.string(msg.Content)
	w.time(msg.CreatedAt)
	return w.bs
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	r := reader{bs: data}
	msg := &core.Message{
		ID:             core.ID(r.uint64()),
		ConversationID: core.ID(r.uint64()),
		Role:           core.Role(r.string()),
		Content:        r.string(),
		CreatedAt:      r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarshalUsageRecord serializes a UsageRecord to bytes.
func MarshalUsageRecord(rec *core.UsageRecord) []byte {
	var w writer
	w.uint64(uint64(rec.ID))
	w.time(rec.Timestamp)
	w.string(rec.Endpoint)
	w.string(rec.RequestType)
	w.string(rec.ResponseType)
	w.bool(rec.ConversationID != nil)
	if rec.ConversationID != nil {
		w.uint64(uint64(*rec.ConversationID))
	}
	w.int(rec.PromptTokens)
	w.int(rec.CompletionTokens)
	w.int(rec.TotalTokens)
	w.optInt(rec.RequestChars)
	w.optInt(rec.ResponseChars)
	w.bool(rec.DurationSeconds != nil)
	if rec.DurationSeconds != nil {
		w.float(*rec.DurationSeconds)
	}
	w.string(rec.Model)
	w.string(rec.Error)
	w.float(rec.Cost)
	w.string(rec.Notes)
	return w.bs
}

// UnmarshalUsageRecord deserializes a UsageRecord from bytes.
func UnmarshalUsageRecord(data []byte) (*core.UsageRecord, error) {
	r := reader{bs: data}
	rec := &core.UsageRecord{
		ID:           core.ID(r.uint64()),
		Timestamp:    r.time(),
		Endpoint:     r.string(),
		RequestType:  r.string(),
		ResponseType: r.string(),
	}
	if r.bool() {
		rec.ConversationID = core.IDPtr(core.ID(r.uint64()))
	}
	rec.PromptTokens = r.int()
	rec.CompletionTokens = r.int()
	rec.TotalTokens = r.int()
	rec.RequestChars = r.optInt()
	rec.ResponseChars = r.optInt()
	if r.bool() {
		rec.DurationSeconds = core.FloatPtr(r.float())
	}
	rec.Model = r.string()
	rec.Error = r.string()
	rec.Cost = r.float()
	rec.Notes = r.string()
	if err := r.done(); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarshalSettings serializes Settings to bytes. The free-form data map is
// embedded as JSON text.
func MarshalSettings(settings *core.Settings) ([]byte, error) {
	data, err := json.Marshal(settings.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	var w writer
	w.string(string(data))
	w.time(settings.UpdatedAt)
	return w.bs, nil
}

// UnmarshalSettings deserializes Settings from bytes.
func UnmarshalSettings(data []byte) (*core.Settings, error) {
	r := reader{bs: data}
	raw := r.string()
	updated := r.time()
	if err := r.done(); err != nil {
		return nil, err
	}

	settings := &core.Settings{UpdatedAt: updated}
	if err := json.Unmarshal([]byte(raw), &settings.Data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return settings, nil
}

type writer struct {
	bs []byte
}

func (w *writer) grow(n int) []byte {
	start := len(w.bs)
	w.bs = append(w.bs, make([]byte, n)...)
	return w.bs[start:]
}

func (w *writer) uint64(v uint64) {
	varint.Uint64.Marshal(v, w.grow(varint.Uint64.Size(v)))
}

func (w *writer) int(v int) {
	varint.Int64.Marshal(int64(v), w.grow(varint.Int64.Size(int64(v))))
}

func (w *writer) string(v string) {
	ord.String.Marshal(v, w.grow(ord.String.Size(v)))
}

func (w *writer) bool(v bool) {
	ord.Bool.Marshal(v, w.grow(ord.Bool.Size(v)))
}

func (w *writer) float(v float64) {
	w.uint64(math.Float64bits(v))
}

func (w *writer) time(t time.Time) {
	v := t.UnixMicro()
	varint.Int64.Marshal(v, w.grow(varint.Int64.Size(v)))
}

func (w *writer) optInt(v *int) {
	w.bool(v != nil)
	if v != nil {
		w.int(*v)
	}
}

// reader decodes fields in order. The first failure sticks and later reads
// return zero values.
type reader struct {
	bs  []byte
	err error
}

func (r *reader) advance(n int, err error) bool {
	if err != nil {
		r.err = err
		return false
	}
	r.bs = r.bs[n:]
	return true
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return 0
	}
	return int(v)
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return ""
	}
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return false
	}
	return v
}

func (r *reader) float() float64 {
	return math.Float64frombits(r.uint64())
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *reader) optInt() *int {
	if !r.bool() {
		return nil
	}
	v := r.int()
	return &v
}

func (r *reader) done() error {
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return nil
}
