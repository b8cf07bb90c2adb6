// Package store persists the Flux document: a JSON object whose "nodes"
// collection holds node configurations and whose "config" collection is
// reserved for service-wide settings.
//
// A Store keeps the whole document in memory and writes all of it through a
// Backend on every change. Writes are committed to memory only after the
// backend accepts them, so a failed flush leaves the in-memory view
// unchanged. Collections the service does not understand are kept verbatim.
//
// # Backends
//
//   - file: a single JSON file, written atomically (default db.json)
//   - sqlite: one row per collection in a migrated SQLite table
//   - redis: one hash field per collection
//   - postgres: one row per collection in a PostgreSQL table
//   - memory: process-local, for tests and dry runs
//
// # Usage
//
//	backend, err := store.NewBackend(ctx, cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	st, err := store.Open(ctx, backend)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	registry := node.NewRegistry(st, schema)
package store
