package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the document in process memory.
//
// It is used for tests and dry runs. SetSaveError makes every following
// Save fail, which exercises the flush-failure path.
type MemoryBackend struct {
	mu      sync.Mutex
	cols    Collections
	saveErr error
	saves   int
	closed  bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cols: Collections{}}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context) (Collections, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.cols.clone(), nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, c Collections) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.saveErr != nil {
		return b.saveErr
	}
	b.cols = c.clone()
	b.saves++
	return nil
}

// HealthCheck implements Backend.
func (b *MemoryBackend) HealthCheck(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// SetSaveError makes subsequent saves fail with err. Pass nil to recover.
func (b *MemoryBackend) SetSaveError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}

// Saves returns the number of successful saves.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Document returns the last saved document, encoded as the file backend
// would write it.
func (b *MemoryBackend) Document() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return EncodeDocument(b.cols)
}
