// Package migrations embeds the schema migrations applied by
// therabook-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
