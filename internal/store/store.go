package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mttchpmn/flux/internal/node"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the in-memory mirror of the persisted document.
//
// Reads are served from memory. Every write builds the next document,
// saves it through the backend and only then replaces the mirror. Writes
// are serialised, so concurrent upserts never lose one another's records.
//
// Store implements node.Collection.
type Store struct {
	backend Backend
	logger  Logger

	// writeMu serialises read-modify-write cycles, including the save.
	writeMu sync.Mutex

	mu    sync.RWMutex
	nodes []node.Config
	other Collections
}

// Open loads the document from backend. When the backend is empty, or is
// missing a default collection, the defaults are filled in and written
// back before Open returns.
//
// Parameters:
//   - ctx: Context for the initial load and write
//   - backend: Where the document lives
//
// Returns:
//   - *Store: Ready for use
//   - error: If the document cannot be loaded, decoded or initialised
func Open(ctx context.Context, backend Backend) (*Store, error) {
	return OpenWithLogger(ctx, backend, noopLogger{})
}

// OpenWithLogger is Open with a logger attached from the start so the
// initial load is logged.
func OpenWithLogger(ctx context.Context, backend Backend, logger Logger) (*Store, error) {
	return open(ctx, backend, logger, true)
}

// Inspect loads the document like OpenWithLogger but never writes to the
// backend: missing default collections are filled in memory only.
func Inspect(ctx context.Context, backend Backend, logger Logger) (*Store, error) {
	return open(ctx, backend, logger, false)
}

func open(ctx context.Context, backend Backend, logger Logger, writeDefaults bool) (*Store, error) {
	s := &Store{backend: backend, logger: logger}

	cols, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading document from %s: %w", backend.Name(), err)
	}

	initialise := cols.fillDefaults()

	nodes, err := decodeNodes(cols[CollectionNodes])
	if err != nil {
		return nil, err
	}

	other := cols.clone()
	delete(other, CollectionNodes)

	if initialise && writeDefaults {
		next := other.clone()
		body, err := encodeNodes(nodes)
		if err != nil {
			return nil, err
		}
		next[CollectionNodes] = body
		if err := backend.Save(ctx, next); err != nil {
			return nil, fmt.Errorf("initialising document in %s: %w", backend.Name(), err)
		}
		logger.Info("document initialised", "driver", backend.Name())
	}

	s.nodes = nodes
	s.other = other

	logger.Info("document loaded", "driver", backend.Name(), "nodes", len(nodes))
	return s, nil
}

// Find returns a copy of the first node matching the predicate.
func (s *Store) Find(match func(node.Config) bool) (node.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.nodes {
		if match(c) {
			return c.Clone(), true
		}
	}
	return node.Config{}, false
}

// All returns a copy of every node in stored order.
func (s *Store) All() []node.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]node.Config, len(s.nodes))
	for i, c := range s.nodes {
		out[i] = c.Clone()
	}
	return out
}

// Upsert replaces the first node matching the predicate with the result of
// update, or appends it when nothing matches, then saves the document.
// The in-memory view changes only if the save succeeds.
func (s *Store) Upsert(
	ctx context.Context,
	match func(node.Config) bool,
	update func(existing node.Config, found bool) node.Config,
) (node.Config, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	idx := -1
	for i, c := range s.nodes {
		if match(c) {
			idx = i
			break
		}
	}
	next := make([]node.Config, len(s.nodes), len(s.nodes)+1)
	copy(next, s.nodes)
	other := s.other
	s.mu.RUnlock()

	found := idx >= 0
	var existing node.Config
	if found {
		existing = next[idx].Clone()
	}
	result := update(existing, found)

	if found {
		next[idx] = result
	} else {
		next = append(next, result)
	}

	if err := s.save(ctx, next, other); err != nil {
		return node.Config{}, false, err
	}

	s.mu.Lock()
	s.nodes = next
	s.mu.Unlock()

	return result.Clone(), found, nil
}

// Driver returns the backend name.
func (s *Store) Driver() string {
	return s.backend.Name()
}

// HealthCheck verifies the backend is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.backend.HealthCheck(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) save(ctx context.Context, nodes []node.Config, other Collections) error {
	body, err := encodeNodes(nodes)
	if err != nil {
		return err
	}

	cols := other.clone()
	cols[CollectionNodes] = body

	if err := s.backend.Save(ctx, cols); err != nil {
		s.logger.Error("document flush failed", "driver", s.backend.Name(), "error", err)
		return fmt.Errorf("flushing document to %s: %w", s.backend.Name(), err)
	}

	s.logger.Debug("document flushed", "driver", s.backend.Name(), "nodes", len(nodes))
	return nil
}

func encodeNodes(nodes []node.Config) (json.RawMessage, error) {
	if nodes == nil {
		nodes = []node.Config{}
	}
	// Stored values must round-trip byte for byte, so HTML is not escaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nodes); err != nil {
		return nil, fmt.Errorf("encoding nodes: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeNodes(body json.RawMessage) ([]node.Config, error) {
	nodes := []node.Config{}
	if len(body) == 0 {
		return nodes, nil
	}
	if err := json.Unmarshal(body, &nodes); err != nil {
		return nil, fmt.Errorf("%w: nodes collection: %w", ErrCorruptDocument, err)
	}
	if nodes == nil {
		nodes = []node.Config{}
	}
	return nodes, nil
}
