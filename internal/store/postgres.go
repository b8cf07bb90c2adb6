package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
)

const (
	// postgresPingTimeout bounds the connectivity check in OpenPostgres.
	postgresPingTimeout = 5 * time.Second

	// postgresMaxConns caps the pool. Writes are serialised by the Store,
	// so a small pool is enough.
	postgresMaxConns = 4
)

// PostgresBackend stores each collection as a row of a PostgreSQL table.
// Bodies are kept as TEXT so key order survives a round trip.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects to cfg.DSN, verifies the connection and creates the
// collections table if it does not exist.
func OpenPostgres(ctx context.Context, cfg config.PostgresStorageConfig) (*PostgresBackend, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	poolCfg.MaxConns = postgresMaxConns
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	b := &PostgresBackend{
		pool:  pool,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, b.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating %s: %w", b.table, err)
	}

	return b, nil
}

// Name implements Backend.
func (b *PostgresBackend) Name() string { return config.DriverPostgres }

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) (Collections, error) {
	rows, err := b.pool.Query(ctx, fmt.Sprintf("SELECT name, body FROM %s", b.table))
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
func (b *PostgresBackend) Save(ctx context.Context, c Collections) error {
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", b.table)); err != nil {
			return fmt.Errorf("clearing collections: %w", err)
		}

		batch := &pgx.Batch{}
		for _, name := range c.orderedNames() {
			batch.Queue(fmt.Sprintf("INSERT INTO %s (name, body) VALUES ($1, $2)", b.table), name, string(c[name]))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("writing collections: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving to %s: %w", b.table, err)
	}
	return nil
}

// HealthCheck implements Backend.
func (b *PostgresBackend) HealthCheck(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
