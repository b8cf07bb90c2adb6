// Package migrations embeds the SQLite schema for the sqlite storage driver.
package migrations

import "embed"

// FS holds the *.sql migration files at its root.
//
//go:embed *.sql
var FS embed.FS
