package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
	"github.com/mttchpmn/flux/internal/infrastructure/database"
	"github.com/mttchpmn/flux/migrations"
)

// SQLiteBackend stores each collection as a row of the collections table.
type SQLiteBackend struct {
	db *database.DB
}

// OpenSQLite opens (creating if needed) the SQLite database and applies
// pending migrations.
func OpenSQLite(ctx context.Context, cfg config.SQLiteStorageConfig) (*SQLiteBackend, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating sqlite store: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return config.DriverSQLite }

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) (Collections, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name, body FROM collections")
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	cols := Collections{}
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scanning collection row: %w", err)
		}
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("%w: collection %q", ErrCorruptDocument, name)
		}
		cols[name] = json.RawMessage(body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return cols, nil
}

// Save implements Backend. All rows are replaced in one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, c Collections) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM collections"); err != nil {
		return fmt.Errorf("clearing collections: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, name := range c.orderedNames() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, body, updated_at) VALUES (?, ?, ?)",
			name, string(c[name]), now,
		); err != nil {
			return fmt.Errorf("writing collection %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing collections: %w", err)
	}
	return nil
}

// HealthCheck implements Backend.
func (b *SQLiteBackend) HealthCheck(ctx context.Context) error {
	return b.db.HealthCheck(ctx)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
