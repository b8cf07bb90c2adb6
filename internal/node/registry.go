package node

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Collection is the persistence capability the registry needs: predicate
// lookup over the nodes collection and an atomic upsert that is flushed to
// durable storage before it returns.
type Collection interface {
	// Find returns the first record matching the predicate.
	Find(match func(Config) bool) (Config, bool)

	// Upsert applies update to the first record matching the predicate, or
	// appends the result when nothing matches, then flushes the whole
	// document. On flush failure nothing is changed and the error is returned.
	Upsert(ctx context.Context, match func(Config) bool, update func(existing Config, found bool) Config) (Config, bool, error)

	// All returns a copy of every record in stored order.
	All() []Config
}

// Notifier receives upserts after they are durable.
type Notifier interface {
	NotifyChange(ctx context.Context, change Change) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, change Change) error

// NotifyChange implements Notifier.
func (f NotifierFunc) NotifyChange(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Registry finds and upserts node configurations by identifier.
//
// All public methods are safe for concurrent use. Upserts are serialised by
// the underlying Collection, so concurrent writes to the same id resolve as
// last-writer-wins.
type Registry struct {
	coll   Collection
	schema Schema
	strict bool
	logger Logger

	notifiers  []Notifier
	notifierMu sync.RWMutex
}

// NewRegistry creates a registry over coll using the given schema variant.
func NewRegistry(coll Collection, schema Schema) *Registry {
	return &Registry{
		coll:   coll,
		schema: schema,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStrict toggles strict mode. In strict mode Upsert validates the built
// record and returns ErrInvalidNode instead of writing it.
func (r *Registry) SetStrict(strict bool) {
	r.strict = strict
}

// AddNotifier registers a notifier for successful upserts.
func (r *Registry) AddNotifier(n Notifier) {
	r.notifierMu.Lock()
	r.notifiers = append(r.notifiers, n)
	r.notifierMu.Unlock()
}

// Schema returns the active schema variant.
func (r *Registry) Schema() Schema {
	return r.schema
}

// Find returns the stored record whose id equals id. Absent, null and empty
// ids all look up the shared null-id record.
func (r *Registry) Find(id Value) (Config, bool) {
	want := NormaliseID(id)
	return r.coll.Find(matchID(want))
}

// Lookup returns the stored record for id, or the schema's default record
// when there is none. The boolean reports whether a stored record was found.
func (r *Registry) Lookup(id Value) (Config, bool) {
	if c, ok := r.Find(id); ok {
		return c, true
	}
	return Default(r.schema), false
}

// Upsert inserts a new record built from in, or merges it onto the existing
// record with the same id. The document is flushed before Upsert returns.
//
// Returns:
//   - Config: the stored record after the write
//   - bool: true if a new record was created
//   - error: ErrInvalidNode in strict mode, or the flush error
func (r *Registry) Upsert(ctx context.Context, in Fields) (Config, bool, error) {
	built := Build(r.schema, in)

	if r.strict {
		if err := Validate(r.schema, built); err != nil {
			return Config{}, false, err
		}
	}

	stored, found, err := r.coll.Upsert(ctx, matchID(built.ID), func(existing Config, found bool) Config {
		if !found {
			return built
		}
		return Merge(r.schema, existing, built)
	})
	if err != nil {
		return Config{}, false, fmt.Errorf("upserting node %s: %w", built.ID, err)
	}

	change := Change{Action: ActionUpdated, Node: stored}
	if !found {
		change.Action = ActionCreated
		r.logger.Info("node created", "id", stored.ID.String())
	} else {
		r.logger.Info("node updated", "id", stored.ID.String())
	}
	r.notify(ctx, change)

	return stored, !found, nil
}

// List returns every stored record in stored order.
func (r *Registry) List() []Config {
	return r.coll.All()
}

// notify fans a change out to all notifiers. Failures are logged only.
func (r *Registry) notify(ctx context.Context, change Change) {
	r.notifierMu.RLock()
	notifiers := r.notifiers
	r.notifierMu.RUnlock()

	for _, n := range notifiers {
		if err := n.NotifyChange(ctx, change); err != nil {
			r.logger.Warn("node change notification failed",
				"id", change.Node.ID.String(),
				"error", err,
			)
		}
	}
}

// matchID returns a predicate selecting records whose id equals id.
func matchID(id Value) func(Config) bool {
	return func(c Config) bool {
		return c.ID.Equal(id)
	}
}
