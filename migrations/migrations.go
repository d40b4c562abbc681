// Package migrations embeds the SQL schema so binaries carry it with them.
package migrations

import "embed"

// FS holds the numbered migration files.
//
//go:embed *.sql
var FS embed.FS
