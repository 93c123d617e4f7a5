// Package migrations carries the SQL schema compiled into the binary.
package migrations

import "embed"

// FS holds every *.sql migration, named NNN_description.sql
//
//go:embed *.sql
var FS embed.FS
