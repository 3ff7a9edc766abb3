// Package migrations embeds the goose SQL migrations for posts, comments and analyses.
//
// Files follow the naming convention YYYYMMDDHHMMSS_description.sql and are
// applied in order by storage.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
