// Package migrations embeds the SQL schema of the medical catalog.
package migrations

import "embed"

// FS holds the numbered migration files, applied in version order.
//
//go:embed *.sql
var FS embed.FS
