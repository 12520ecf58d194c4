package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the relay schema, with the sqlite variants under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
