package migrations

import "embed"

// FS holds the SQL migration scripts applied by Run.
//
//go:embed scripts/*.sql
var FS embed.FS
