// Package snapshot provides the small key/value media the fallback store
// writes its full-state snapshots to.
//
// A medium holds a handful of text entries keyed by name. Set replaces the
// given entries atomically; Get returns one entry. Three media are provided:
// a bbolt file (the default), an SQLite file and a process-local map.
package snapshot

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the medium was used after Close.
	ErrClosed = errors.New("snapshot medium closed")

	// ErrUnknownDriver indicates an unsupported driver name was requested.
	ErrUnknownDriver = errors.New("unknown snapshot driver")
)

// Medium stores named text entries.
type Medium interface {
	// Get returns the entry under key. The second result is false if the
	// entry was never written.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes every entry in one atomic step.
	Set(ctx context.Context, entries map[string]string) error

	// Close releases the medium.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open opens a medium by driver name. The memory driver ignores path.
func Open(driver, path string) (Medium, error) {
	switch driver {
	case DriverBolt, "":
		return OpenBolt(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
