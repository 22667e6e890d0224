// Package migrations embeds the schema scripts of the club database.
package migrations

import "embed"

// FS holds the bundled migration scripts. The CLI falls back to it when the
// configured migrations directory does not exist.
//
//go:embed *.sql
var FS embed.FS
