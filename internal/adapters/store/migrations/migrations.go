// Package migrations embeds the engine store schema for goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
