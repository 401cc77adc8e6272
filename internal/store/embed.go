package store

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode switches getMigrationsFS to the on-disk migration files so
// schema edits take effect without a rebuild. Only honored when the
// process runs from the repository root.
var DevMode = false

const devMigrationsDir = "internal/store/migrations"

// getMigrationsFS returns the migration files with the version-numbered
// .sql files at the root of the returned filesystem.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev mode: cannot read %s: %w", devMigrationsDir, err)
		}
		return os.DirFS(devMigrationsDir), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
