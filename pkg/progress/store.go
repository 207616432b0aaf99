package progress

import (
	"context"
	"errors"
	"sync"

	"igrepost/pkg/logger"
)

// ErrNotFound means no record has been written yet
var ErrNotFound = errors.New("status record not found")

// Store holds the single current status record
type Store interface {
	Get(ctx context.Context) (Record, error)
	Set(ctx context.Context, r Record) error
}

// MemoryStore keeps the record in process memory. It is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	record *Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.record == nil {
		return Record{}, ErrNotFound
	}
	return *m.record, nil
}

func (m *MemoryStore) Set(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record = &r
	return nil
}

// FallbackStore fronts a persistent store with an in-memory copy. Writes go
// to memory first and then to the primary; reads come from the primary and
// fall back to memory when it fails. After a failed primary write memory
// holds the newest record, so reads serve it and push it to the primary
// again until a write succeeds. Primary errors are logged, never returned.
type FallbackStore struct {
	primary Store
	memory  *MemoryStore
	log     logger.Logger

	mu    sync.Mutex
	stale bool // primary is behind memory
}

// NewFallbackStore wraps primary
func NewFallbackStore(primary Store, log logger.Logger) *FallbackStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FallbackStore{
		primary: primary,
		memory:  NewMemoryStore(),
		log:     log,
	}
}

func (f *FallbackStore) Get(ctx context.Context) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stale {
		r, err := f.memory.Get(ctx)
		if err != nil {
			return r, err
		}
		if err := f.primary.Set(ctx, r); err != nil {
			f.log.WithError(err).Debug("Status store still rejecting writes, serving in-memory copy")
		} else {
			f.stale = false
			f.log.Info("Status store caught up with in-memory copy")
		}
		return r, nil
	}

	r, err := f.primary.Get(ctx)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		f.log.WithError(err).Warn("Status store read failed, serving in-memory copy")
	}
	return f.memory.Get(ctx)
}

func (f *FallbackStore) Set(ctx context.Context, r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_ = f.memory.Set(ctx, r)

	if err := f.primary.Set(ctx, r); err != nil {
		f.log.WithError(err).Warn("Status store write failed, kept in memory")
		f.stale = true
		return nil
	}
	f.stale = false
	return nil
}

// Close closes the primary store if it holds resources
func (f *FallbackStore) Close() error {
	if c, ok := f.primary.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
