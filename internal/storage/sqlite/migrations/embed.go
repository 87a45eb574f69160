package migrations

import "embed"

// FS contains embedded SQLite migrations for the tool-call audit journal.
//
//go:embed *.sql
var FS embed.FS
