// Package migrations embeds the sql files goose applies to a user store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
