package hooshi

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/hooshi/snapshot"
	"github.com/poiesic/hooshi/storage"
)

// Defaults used when no option overrides them.
const (
	DefaultInitAttempts   = 5
	DefaultInitDelay      = time.Second
	DefaultSummaryWindow  = 30 * 24 * time.Hour
	DefaultHistoryLimit   = 100
	DefaultRetentionDays  = 60
	DefaultCounterWorkers = 1
)

// PrimaryOpener opens the primary store. It runs on its own goroutine.
type PrimaryOpener func(ctx context.Context) (storage.Store, error)

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger        *slog.Logger
	medium        snapshot.Medium
	opener        PrimaryOpener
	inMemory      bool
	initAttempts  int
	initDelay     time.Duration
	poolSize      int
	clock         func() time.Time
	summaryWindow time.Duration
}

func defaultOptions() *databaseOptions {
	return &databaseOptions{
		logger:        slog.Default(),
		initAttempts:  DefaultInitAttempts,
		initDelay:     DefaultInitDelay,
		poolSize:      DefaultCounterWorkers,
		clock:         time.Now,
		summaryWindow: DefaultSummaryWindow,
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSnapshotMedium sets the medium the fallback store snapshots to.
// The database takes ownership and closes it.
// Default is a bbolt file next to the primary store.
func WithSnapshotMedium(medium snapshot.Medium) DatabaseOption {
	return func(o *databaseOptions) {
		o.medium = medium
	}
}

// WithInitWait bounds how long operations wait for the primary store:
// attempts polls spaced by delay. Zero attempts switches to the fallback
// store on the first operation that finds the primary still opening.
// Default is 5 attempts of 1 second.
func WithInitWait(attempts int, delay time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.initAttempts = max(attempts, 0)
		if delay > 0 {
			o.initDelay = delay
		}
	}
}

// WithPoolSize sets the worker pool size used for background counter saves.
// Default is 1.
func WithPoolSize(size int) DatabaseOption {
	return func(o *databaseOptions) {
		if size > 0 {
			o.poolSize = size
		}
	}
}

// WithPrimaryOpener replaces how the primary store is opened.
func WithPrimaryOpener(open PrimaryOpener) DatabaseOption {
	return func(o *databaseOptions) {
		o.opener = open
	}
}

// WithInMemoryPrimary keeps the primary store in memory. Without a snapshot
// medium the fallback store is kept in memory too.
func WithInMemoryPrimary() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithClock sets the time source for record timestamps and default ranges.
func WithClock(clock func() time.Time) DatabaseOption {
	return func(o *databaseOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSummaryWindow sets how far back a usage summary reaches when no
// start is given.
// Default is 30 days.
func WithSummaryWindow(window time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		if window > 0 {
			o.summaryWindow = window
		}
	}
}
