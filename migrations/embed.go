// Package migrations embeds the SQL schema into the binary so the server
// can migrate a fresh database without any files on disk.
package migrations

import (
	"embed"

	"github.com/ashara-studio/ashara-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
