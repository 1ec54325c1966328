// Package migrations embeds the goose SQL migrations for the transaction log.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
