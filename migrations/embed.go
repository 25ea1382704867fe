// Package migrations embeds the destination-store schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
