// Package migrations embeds the SQL schema applied by db.Bootstrap and the
// migrate command. Each file holds a single statement so the same set runs on
// sqlite3, mysql and postgres.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
