// Package migrations embeds the versioned SQL schema.
package migrations

import "embed"

// FS holds every NNN_name.sql migration at its root
//
//go:embed *.sql
var FS embed.FS
