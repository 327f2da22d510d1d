package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/hooshi/core"
)

// Name identifies one id sequence.
type Name string

const (
	Conversations Name = "conversation_counter"
	Messages      Name = "message_counter"
	APIUsage      Name = "api_usage_counter"
)

// Names lists every sequence in a stable order.
var Names = []Name{Conversations, Messages, APIUsage}

// persistTimeout bounds one background save across all persisters.
const persistTimeout = 5 * time.Second

// Source is a store the counters can be reconciled against on start.
type Source interface {
	// LoadCounters returns the counter values last saved to the store.
	// Missing counters are omitted from the map.
	LoadCounters(ctx context.Context) (map[Name]core.ID, error)

	// MaxIDs returns the highest id present in the store per sequence.
	// Sequences with no records are omitted from the map.
	MaxIDs(ctx context.Context) (map[Name]core.ID, error)
}

// Persister receives counter saves.
type Persister interface {
	SaveCounters(ctx context.Context, values map[Name]core.ID) error
}

// Counters holds the in-memory sequences. It is safe for concurrent use.
type Counters struct {
	mu     sync.Mutex
	values map[Name]core.ID

	sinksMu sync.RWMutex
	sinks   []Persister

	pool      *ants.Pool
	persistMu sync.Mutex
	scheduled atomic.Bool
	pending   sync.WaitGroup
	released  atomic.Bool

	logger *slog.Logger
}

// Option configures Counters.
type Option func(*Counters) error

// WithPoolSize sets the worker pool size used for background saves.
// Default is 1.
func WithPoolSize(size int) Option {
	return func(c *Counters) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Counters) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "sequence")
		return nil
	}
}

// New returns counters with every sequence at 1.
func New(opts ...Option) (*Counters, error) {
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	c := &Counters{
		values: make(map[Name]core.ID, len(Names)),
		pool:   pool,
		logger: slog.Default().With("component", "sequence"),
	}
	for _, name := range Names {
		c.values[name] = 1
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}
	return c, nil
}

// AddPersister registers a store that receives every subsequent save.
func (c *Counters) AddPersister(p Persister) {
	if p == nil {
		return
	}
	c.sinksMu.Lock()
	c.sinks = append(c.sinks, p)
	c.sinksMu.Unlock()
}

// Next returns the current value of the named sequence and advances it.
// The advance is persisted in the background; Next never fails.
func (c *Counters) Next(name Name) core.ID {
	c.mu.Lock()
	id := c.values[name]
	if id == 0 {
		id = 1
	}
	c.values[name] = id + 1
	c.mu.Unlock()

	c.schedulePersist()
	return id
}

// Peek returns the value Next would issue, without advancing.
func (c *Counters) Peek(name Name) core.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id := c.values[name]; id > 0 {
		return id
	}
	return 1
}

// Snapshot returns a copy of all counter values.
func (c *Counters) Snapshot() map[Name]core.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.values)
}

// Load raises each counter to the largest of its current value, the value
// saved in any source and one past the highest id found in any source.
// Counters never move backwards. Sources that fail are skipped and their
// errors returned once the remaining sources have been applied.
func (c *Counters) Load(ctx context.Context, sources ...Source) error {
	var errs []error
	for _, src := range sources {
		if src == nil {
			continue
		}

		saved, err := src.LoadCounters(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("load counters: %w", err))
		} else {
			for name, v := range saved {
				c.raise(name, v)
			}
		}

		maxIDs, err := src.MaxIDs(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan max ids: %w", err))
			continue
		}
		for name, v := range maxIDs {
			c.raise(name, v+1)
		}
	}
	return errors.Join(errs...)
}

func (c *Counters) raise(name Name, v core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.values[name] {
		c.values[name] = v
	}
}

// Reset puts the named sequences back to 1 and persists the change.
func (c *Counters) Reset(names ...Name) error {
	c.mu.Lock()
	for _, name := range names {
		if _, ok := c.values[name]; !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownCounter, name)
		}
	}
	for _, name := range names {
		c.values[name] = 1
	}
	c.mu.Unlock()

	c.schedulePersist()
	return nil
}

// Flush waits for scheduled saves and then saves synchronously to every
// persister.
func (c *Counters) Flush(ctx context.Context) error {
	if c.released.Load() {
		return ErrReleased
	}
	c.pending.Wait()
	return c.persist(ctx)
}

// Release waits for scheduled saves and releases the worker pool.
// The counters still issue ids afterwards but no longer persist them.
func (c *Counters) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.pending.Wait()
	if c.pool != nil {
		c.pool.Release()
	}
}

// schedulePersist queues one background save. Calls made while a save is
// queued but not yet started are folded into it.
func (c *Counters) schedulePersist() {
	if c.released.Load() {
		return
	}
	if !c.scheduled.CompareAndSwap(false, true) {
		return
	}

	c.pending.Add(1)
	err := c.pool.Submit(func() {
		defer c.pending.Done()
		c.scheduled.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		_ = c.persist(ctx)
	})
	if err != nil {
		c.scheduled.Store(false)
		c.pending.Done()
		c.logger.Warn("failed to schedule counter save", "err", err)
	}
}

func (c *Counters) persist(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.sinksMu.RLock()
	sinks := append([]Persister(nil), c.sinks...)
	c.sinksMu.RUnlock()

	values := c.Snapshot()
	var errs []error
	for _, sink := range sinks {
		if err := sink.SaveCounters(ctx, values); err != nil {
			c.logger.Warn("failed to save counters", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
