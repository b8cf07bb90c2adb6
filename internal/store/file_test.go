package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mttchpmn/flux/internal/node"
)

func TestFileBackend_CreatesDocumentOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "db.json")

	st, err := Open(context.Background(), NewFileBackend(path))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck // Test cleanup

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"nodes\": [],\n  \"config\": {}\n}", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileBackend_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	ctx := context.Background()

	st, err := Open(ctx, NewFileBackend(path))
	require.NoError(t, err)

	rec := node.Build(node.SchemaA, node.Fields{"id": node.String("node1"), "name": node.String("Kitchen"), "color0": node.String("#ff0000")})
	_, _, err = st.Upsert(ctx, matchID("node1"), replaceWith(rec))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	reopened, err := Open(ctx, NewFileBackend(path))
	require.NoError(t, err)

	got, found := reopened.Find(matchID("node1"))
	require.True(t, found)
	assert.True(t, got.Color1.IsNull(), "null must survive a round trip")
	assert.True(t, got.Delay.Equal(node.Int(1000)))
}

func TestFileBackend_ReadsHandWrittenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"id":"x","delay":"250"}],"config":{}}`), 0600))

	st, err := Open(context.Background(), NewFileBackend(path))
	require.NoError(t, err)

	got, found := st.Find(matchID("x"))
	require.True(t, found)
	assert.Equal(t, node.KindString, got.Delay.Kind(), "stored types are preserved")
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":`), 0600))

	_, err := Open(context.Background(), NewFileBackend(path))
	assert.ErrorIs(t, err, ErrCorruptDocument)
}

func TestFileBackend_SaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	ctx := context.Background()

	b := NewFileBackend(path)
	require.NoError(t, b.Save(ctx, defaultCollections()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Replace the target with a directory so the rename fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), nil, 0600))

	assert.Error(t, b.Save(ctx, Collections{"nodes": []byte(`[{"id":"y"}]`)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be cleaned up")
	assert.NotEmpty(t, before)
}

func TestFileBackend_HealthCheck(t *testing.T) {
	assert.NoError(t, NewFileBackend(filepath.Join(t.TempDir(), "db.json")).HealthCheck(context.Background()))
	assert.Error(t, NewFileBackend("/nonexistent/dir/db.json").HealthCheck(context.Background()))
}

func TestFileBackend_KeepsUnknownRecordMembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	doc := `{"nodes":[` +
		`{"id":"a","name":"A","location":"hall","color0":"#fff"},` +
		`{"id":"b","name":"B","firmware":{"rev":3}},` +
		`{"name":"orphan"}` +
		`],"config":{}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	ctx := context.Background()
	st, err := Open(ctx, NewFileBackend(path))
	require.NoError(t, err)

	registry := node.NewRegistry(st, node.SchemaA)
	_, created, err := registry.Upsert(ctx, node.Fields{"id": node.String("b"), "name": node.String("B2")})
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [
			{"id":"a","name":"A","color0":"#fff","location":"hall"},
			{"id":"b","name":"B2","color1":null,"color2":null,"pattern":"static","delay":1000,"firmware":{"rev":3}},
			{"name":"orphan"}
		],
		"config": {}
	}`, string(data))

	// A record without an id is not the null-id record.
	_, found := registry.Find(node.Null())
	assert.False(t, found)
}
