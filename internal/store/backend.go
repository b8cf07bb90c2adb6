package store

import (
	"context"
	"fmt"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
)

// Backend reads and writes the whole document.
//
// Save must be all-or-nothing: after an error the previously saved document
// is still the one Load returns.
type Backend interface {
	// Load returns the stored collections, or an empty map when nothing has
	// been saved yet.
	Load(ctx context.Context) (Collections, error)

	// Save replaces the stored document.
	Save(ctx context.Context, c Collections) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and handles.
	Close() error

	// Name identifies the driver in logs and health output.
	Name() string
}

// NewBackend builds the backend selected by cfg.Driver.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return NewFileBackend(cfg.File.Path), nil
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLite)
	case config.DriverRedis:
		return OpenRedis(ctx, cfg.Redis)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
