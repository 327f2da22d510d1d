package badger

import (
	"log/slog"

	"github.com/poiesic/hooshi/storage"
)

// Store implements storage.Store on BadgerDB. It is the durable primary
// backend.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) a store at path and brings its schema up to date.
// With inMemory set the path is ignored and nothing touches disk.
func Open(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open backend, running schema migrations first.
func NewStore(backend *Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "primary-store"),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.backend.Close()
}
