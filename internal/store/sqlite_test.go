package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
	"github.com/mttchpmn/flux/internal/node"
)

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flux.db")
	ctx := context.Background()
	cfg := config.StorageConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteStorageConfig{Path: path, WALMode: true, BusyTimeout: 1},
	}

	backend, err := NewBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", backend.Name())

	st, err := Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, st.HealthCheck(ctx))

	_, _, err = st.Upsert(ctx, matchID("n1"), replaceWith(node.Config{ID: node.String("n1"), Pattern: node.String("flash")}))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	backend, err = NewBackend(ctx, cfg)
	require.NoError(t, err)
	defer backend.Close() //nolint:errcheck // Test cleanup

	cols, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"n1","pattern":"flash"}]`, string(cols[CollectionNodes]))
	assert.JSONEq(t, `{}`, string(cols[CollectionConfig]))
}

func TestSQLiteBackend_SaveReplacesAllRows(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, config.SQLiteStorageConfig{Path: filepath.Join(t.TempDir(), "flux.db")})
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck // Test cleanup

	require.NoError(t, b.Save(ctx, Collections{"nodes": []byte(`[]`), "legacy": []byte(`1`)}))
	require.NoError(t, b.Save(ctx, Collections{"nodes": []byte(`[{"id":"a"}]`)}))

	cols, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
	assert.Equal(t, `[{"id":"a"}]`, string(cols["nodes"]))
}
