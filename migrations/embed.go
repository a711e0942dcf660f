// Package migrations embeds SQL migration files into the binary.
//
// Each dialect has its own directory so the schema can use native types
// (AUTOINCREMENT on SQLite, BIGSERIAL on Postgres) under one version number.
package migrations

import (
	"embed"

	"github.com/saromerop2/API-de-colegio/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
