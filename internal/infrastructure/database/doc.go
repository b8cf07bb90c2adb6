// Package database provides SQLite connectivity for the sqlite storage driver.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Versioned schema migrations from an fs.FS
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Storage.SQLite.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
