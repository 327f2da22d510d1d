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

// Package hooshi persists the conversations, messages, usage records and
// settings of the hooshi real-estate assistant.
//
// A Database writes to a BadgerDB primary store when it can and to an
// in-memory fallback store, snapshotted to a small key/value file, when it
// can't. Callers see one API and never learn which backend served a call.
package hooshi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/snapshot"
	"github.com/poiesic/hooshi/storage"
	"github.com/poiesic/hooshi/storage/badger"
	"github.com/poiesic/hooshi/storage/memory"
)

// File names under the database directory.
const (
	primaryDir   = "primary"
	snapshotFile = "fallback.snapshot"
)

// State is the backend selection of a Database.
type State int

const (
	// StateInitializing means the primary store is still opening.
	StateInitializing State = iota
	// StateReadyPrimary means calls go to the primary store.
	StateReadyPrimary
	// StateReadyFallback means calls go to the fallback store for the rest
	// of the session.
	StateReadyFallback
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReadyPrimary:
		return "primary"
	case StateReadyFallback:
		return "fallback"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Database struct {
	mu      sync.RWMutex
	state   State
	primary storage.Store
	ready   chan struct{}

	fallback *memory.Store
	counters *sequence.Counters
	opening  sync.WaitGroup
	closed   atomic.Bool

	opts   *databaseOptions
	logger *slog.Logger
}

// NewDatabase opens a database rooted at dirPath. The primary store lives in
// a subdirectory and the fallback snapshot in a file beside it. An empty
// dirPath keeps everything in memory.
//
// NewDatabase returns before the primary store has opened; the first
// operations wait for it within the bound set by WithInitWait.
func NewDatabase(dirPath string, opts ...DatabaseOption) (*Database, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if dirPath == "" {
		options.inMemory = true
	}

	logger := options.logger.With("component", "database")

	counters, err := sequence.New(
		sequence.WithPoolSize(options.poolSize),
		sequence.WithLogger(options.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create counters: %w", err)
	}

	medium := options.medium
	if medium == nil {
		medium = openMedium(dirPath, options.inMemory, logger)
	}

	ctx := context.Background()
	fallback := memory.New(medium, memory.WithLogger(options.logger))
	if err := fallback.Restore(ctx); err != nil {
		logger.Warn("failed to restore fallback snapshot, starting empty", "err", err)
	}
	if err := counters.Load(ctx, fallback); err != nil {
		logger.Warn("failed to load counters from fallback store", "err", err)
	}
	counters.AddPersister(fallback)

	db := &Database{
		state:    StateInitializing,
		ready:    make(chan struct{}),
		fallback: fallback,
		counters: counters,
		opts:     options,
		logger:   logger,
	}

	opener := options.opener
	if opener == nil {
		opener = defaultOpener(dirPath, options.inMemory)
	}
	db.opening.Add(1)
	go db.openPrimary(opener)

	return db, nil
}

func defaultOpener(dirPath string, inMemory bool) PrimaryOpener {
	return func(ctx context.Context) (storage.Store, error) {
		path := filepath.Join(dirPath, primaryDir)
		if inMemory {
			path = ""
		}
		store, err := badger.Open(path, inMemory)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// openMedium opens the default bbolt snapshot file, degrading to a
// process-local medium if the file can't be opened.
func openMedium(dirPath string, inMemory bool, logger *slog.Logger) snapshot.Medium {
	if inMemory {
		return snapshot.NewMemory()
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		logger.Warn("failed to create database directory, snapshots kept in memory", "path", dirPath, "err", err)
		return snapshot.NewMemory()
	}
	path := filepath.Join(dirPath, snapshotFile)
	medium, err := snapshot.OpenBolt(path)
	if err != nil {
		logger.Warn("failed to open snapshot file, snapshots kept in memory", "path", path, "err", err)
		return snapshot.NewMemory()
	}
	return medium
}

func (db *Database) openPrimary(open PrimaryOpener) {
	defer db.opening.Done()

	ctx := context.Background()
	store, err := open(ctx)
	if err != nil {
		if db.settle(StateReadyFallback, nil) {
			db.logger.Warn("primary store unavailable, using fallback store", "err", err)
		}
		return
	}

	if err := db.counters.Load(ctx, store); err != nil {
		db.logger.Warn("failed to load counters from primary store", "err", err)
	}

	if !db.settle(StateReadyPrimary, store) {
		db.logger.Warn("primary store opened after fallback was selected, closing it")
		if err := store.Close(); err != nil {
			db.logger.Error("error closing late primary store", "err", err)
		}
		return
	}
	db.counters.AddPersister(store)
	db.logger.Info("primary store ready")
}

// settle moves the database out of StateInitializing. Only the first call
// has any effect.
func (db *Database) settle(state State, primary storage.Store) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.state != StateInitializing {
		return false
	}
	db.state = state
	db.primary = primary
	close(db.ready)
	return true
}

// State returns the current backend selection.
func (db *Database) State() State {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state
}

func (db *Database) primaryStore() storage.Store {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.primary
}

// awaitReady waits for the primary store to settle, polling up to the
// configured number of attempts. If it is still opening after that the
// database settles on the fallback store.
func (db *Database) awaitReady(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	for attempt := 1; attempt <= db.opts.initAttempts; attempt++ {
		if db.State() != StateInitializing {
			return nil
		}
		timer := time.NewTimer(db.opts.initDelay)
		select {
		case <-db.ready:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			db.logger.Debug("waiting for primary store", "attempt", attempt, "of", db.opts.initAttempts)
		}
	}
	if db.settle(StateReadyFallback, nil) {
		db.logger.Warn("primary store not ready, using fallback store")
	}
	return nil
}

// withFallback runs fn against the active store. A backend failure from the
// primary store is logged and fn is run once more against the fallback store.
func withFallback[T any](ctx context.Context, db *Database, op string, fn func(storage.Store) (T, error)) (T, error) {
	if err := db.awaitReady(ctx); err != nil {
		var zero T
		return zero, err
	}

	primary := db.primaryStore()
	if primary == nil {
		return fn(db.fallback)
	}

	v, err := fn(primary)
	if !storage.IsBackendFailure(err) {
		return v, err
	}
	db.logger.Warn("primary store failed, rerouting to fallback store", "op", op, "err", err)
	return fn(db.fallback)
}

// mirror runs fn against the fallback store when the primary store is
// active, so data written there during a reroute follows deletes and
// cleanups. Failures are logged.
func (db *Database) mirror(op string, fn func(storage.Store) error) {
	if db.primaryStore() == nil {
		return
	}
	if err := fn(db.fallback); err != nil {
		db.logger.Warn("failed to apply change to fallback store", "op", op, "err", err)
	}
}

func (db *Database) now() time.Time {
	return core.Timestamp(db.opts.clock())
}

// CreateConversation stores a new conversation and returns its id.
func (db *Database) CreateConversation(ctx context.Context, title string) (core.ID, error) {
	if err := core.ValidateTitle(title); err != nil {
		return 0, err
	}
	if err := db.awaitReady(ctx); err != nil {
		return 0, err
	}

	now := db.now()
	conv := &core.Conversation{
		ID:        db.counters.Next(sequence.Conversations),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := withFallback(ctx, db, "create conversation", func(s storage.Store) (struct{}, error) {
		return struct{}{}, s.InsertConversation(ctx, conv)
	})
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// SaveMessage appends a message to a conversation and returns its id.
// Returns storage.ErrNotFound if the conversation doesn't exist.
func (db *Database) SaveMessage(ctx context.Context, conversationID core.ID, role core.Role, content string) (core.ID, error) {
	msg := &core.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if err := core.ValidateMessage(msg); err != nil {
		return 0, err
	}
	if err := db.awaitReady(ctx); err != nil {
		return 0, err
	}

	msg.ID = db.counters.Next(sequence.Messages)
	msg.CreatedAt = db.now()
	_, err := withFallback(ctx, db, "save message", func(s storage.Store) (struct{}, error) {
		return struct{}{}, s.AppendMessage(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// GetConversations lists conversations most recently updated first.
func (db *Database) GetConversations(ctx context.Context) ([]core.ConversationSummary, error) {
	return withFallback(ctx, db, "list conversations", func(s storage.Store) ([]core.ConversationSummary, error) {
		return s.ListConversations(ctx)
	})
}

// GetConversationByID returns a conversation with its messages, oldest first.
// Returns storage.ErrNotFound if it doesn't exist.
func (db *Database) GetConversationByID(ctx context.Context, id core.ID) (*core.ConversationDetail, error) {
	return withFallback(ctx, db, "get conversation", func(s storage.Store) (*core.ConversationDetail, error) {
		return s.LoadConversation(ctx, id)
	})
}

// UpdateConversationTitle renames a conversation. Returns false if the
// conversation doesn't exist.
func (db *Database) UpdateConversationTitle(ctx context.Context, id core.ID, title string) (bool, error) {
	if err := core.ValidateTitle(title); err != nil {
		return false, err
	}
	_, err := withFallback(ctx, db, "rename conversation", func(s storage.Store) (struct{}, error) {
		return struct{}{}, s.RenameConversation(ctx, id, title, db.now())
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteConversation removes a conversation and its messages. Returns false
// if the conversation didn't exist.
func (db *Database) DeleteConversation(ctx context.Context, id core.ID) (bool, error) {
	deleted, err := withFallback(ctx, db, "delete conversation", func(s storage.Store) (bool, error) {
		return s.DeleteConversation(ctx, id)
	})
	if err != nil {
		return false, err
	}

	db.mirror("delete conversation", func(s storage.Store) error {
		mirrored, err := s.DeleteConversation(ctx, id)
		deleted = deleted || mirrored
		return err
	})
	return deleted, nil
}

// RecordAPIUsage appends a usage record and returns its id. The record's ID
// is assigned, a zero Timestamp is set to now and a zero TotalTokens is
// derived from the prompt and completion counts.
//
// A failure is returned to the caller without trying the fallback store.
func (db *Database) RecordAPIUsage(ctx context.Context, record *core.UsageRecord) (core.ID, error) {
	core.NormalizeUsageRecord(record)
	if record != nil {
		if record.Timestamp.IsZero() {
			record.Timestamp = db.now()
		} else {
			record.Timestamp = core.Timestamp(record.Timestamp)
		}
	}
	if err := core.ValidateUsageRecord(record); err != nil {
		return 0, err
	}
	if err := db.awaitReady(ctx); err != nil {
		return 0, err
	}

	record.ID = db.counters.Next(sequence.APIUsage)
	store := db.primaryStore()
	if store == nil {
		store = db.fallback
	}
	if err := store.InsertUsageRecord(ctx, record); err != nil {
		return 0, fmt.Errorf("record api usage: %w", err)
	}
	return record.ID, nil
}

// GetAPIUsageHistory returns usage records newest first. A limit of zero or
// less means DefaultHistoryLimit.
func (db *Database) GetAPIUsageHistory(ctx context.Context, limit, offset int) ([]*core.UsageRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	offset = max(offset, 0)
	return withFallback(ctx, db, "usage history", func(s storage.Store) ([]*core.UsageRecord, error) {
		return s.ListUsageRecords(ctx, limit, offset)
	})
}

// GetAPIUsageSummary aggregates usage records with start <= Timestamp <= end.
// A zero end means now and a zero start means end minus the summary window.
func (db *Database) GetAPIUsageSummary(ctx context.Context, start, end time.Time) (*core.UsageSummary, error) {
	if end.IsZero() {
		end = db.now()
	}
	if start.IsZero() {
		start = end.Add(-db.opts.summaryWindow)
	}
	return withFallback(ctx, db, "usage summary", func(s storage.Store) (*core.UsageSummary, error) {
		summary := core.NewUsageSummary(start, end)
		err := s.ScanUsageRecords(ctx, start, end, func(r *core.UsageRecord) error {
			summary.Add(r)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return summary, nil
	})
}

// CleanupOldAPIUsageRecords removes usage records older than retentionDays
// and returns how many were removed. Zero or less means DefaultRetentionDays.
func (db *Database) CleanupOldAPIUsageRecords(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := db.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	deleted, err := withFallback(ctx, db, "cleanup usage", func(s storage.Store) (int, error) {
		return s.DeleteUsageRecordsBefore(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}

	db.mirror("cleanup usage", func(s storage.Store) error {
		_, err := s.DeleteUsageRecordsBefore(ctx, cutoff)
		return err
	})
	db.logger.Info("cleaned up usage records", "deleted", deleted, "retention_days", retentionDays)
	return deleted, nil
}

// SaveSettings replaces the stored settings.
func (db *Database) SaveSettings(ctx context.Context, data map[string]any) error {
	settings := &core.Settings{Data: data, UpdatedAt: db.now()}
	_, err := withFallback(ctx, db, "save settings", func(s storage.Store) (struct{}, error) {
		return struct{}{}, s.PutSettings(ctx, settings)
	})
	return err
}

// GetSettings returns the stored settings, or nil if none were saved.
func (db *Database) GetSettings(ctx context.Context) (map[string]any, error) {
	settings, err := withFallback(ctx, db, "get settings", func(s storage.Store) (*core.Settings, error) {
		return s.GetSettings(ctx)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings.Data, nil
}

// ResetDatabase removes every conversation and message and restarts their
// id sequences. Usage records and settings are kept.
func (db *Database) ResetDatabase(ctx context.Context) error {
	_, err := withFallback(ctx, db, "reset", func(s storage.Store) (struct{}, error) {
		return struct{}{}, s.Reset(ctx)
	})
	if err != nil {
		return err
	}
	db.mirror("reset", func(s storage.Store) error {
		return s.Reset(ctx)
	})
	if err := db.counters.Reset(sequence.Conversations, sequence.Messages); err != nil {
		return err
	}
	db.logger.Info("database reset")
	return nil
}

// Close saves the counters, writes a final snapshot and closes both stores.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	// A primary store still opening is closed by its goroutine
	db.settle(StateReadyFallback, nil)
	db.opening.Wait()

	if err := db.counters.Flush(context.Background()); err != nil {
		db.logger.Warn("failed to save counters on close", "err", err)
	}
	db.counters.Release()

	var errs []error
	if primary := db.primaryStore(); primary != nil {
		if err := primary.Close(); err != nil {
			db.logger.Error("error closing primary store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := db.fallback.Close(); err != nil {
		db.logger.Error("error closing fallback store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
