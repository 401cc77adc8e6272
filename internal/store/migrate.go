package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrateLogger routes golang-migrate output through the standard logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// newMigrate builds a migrate instance over the store's live connection.
// Callers must never Close() the returned instance; that would close the
// underlying database out from under the store.
func (s *Store) newMigrate(migrationsFS fs.FS) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// MigrateUp applies every pending migration. Already being up to date is
// not an error.
func (s *Store) MigrateUp(migrationsFS fs.FS) error {
	m, err := s.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown(migrationsFS fs.FS) error {
	m, err := s.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion reports the current schema version and whether the last
// migration left the database dirty. A database with no recorded version
// reports (0, false, nil).
func (s *Store) MigrateVersion(migrationsFS fs.FS) (uint, bool, error) {
	m, err := s.newMigrate(migrationsFS)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// MigrateForce overwrites the recorded schema version without running any
// migration. Recovery tool for databases left dirty by a failed migration.
func (s *Store) MigrateForce(migrationsFS fs.FS, version int) error {
	m, err := s.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force migration failed: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down until the schema sits at version.
func (s *Store) MigrateTo(migrationsFS fs.FS, version uint) error {
	m, err := s.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// BaselineAtVersion marks an existing database as already migrated to
// version without running any migration. It refuses to touch a database
// that already has migration bookkeeping.
func (s *Store) BaselineAtVersion(version uint) error {
	var exists bool
	err := s.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for schema_migrations table: %w", err)
	}
	if exists {
		return fmt.Errorf("database already has a schema_migrations table; refusing to baseline")
	}

	if _, err := s.Exec(`CREATE TABLE schema_migrations (version uint64, dirty bool)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	if _, err := s.Exec(`CREATE UNIQUE INDEX version_unique ON schema_migrations (version)`); err != nil {
		return fmt.Errorf("failed to index schema_migrations table: %w", err)
	}
	if _, err := s.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, false)`, version); err != nil {
		return fmt.Errorf("failed to record baseline version: %w", err)
	}
	return nil
}

// GetMigrationStatus reports whether migration bookkeeping exists alongside
// the current and latest available versions.
func (s *Store) GetMigrationStatus(migrationsFS fs.FS) (map[string]interface{}, error) {
	var exists bool
	err := s.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check for schema_migrations table: %w", err)
	}

	status := map[string]interface{}{
		"schema_migrations_exists": exists,
	}

	if exists {
		version, dirty, err := s.MigrateVersion(migrationsFS)
		if err != nil {
			return nil, err
		}
		status["version"] = version
		status["dirty"] = dirty
	}

	if latest, err := GetLatestMigrationVersion(migrationsFS); err == nil {
		status["latest_available"] = latest
	}

	return status, nil
}

// GetLatestMigrationVersion returns the highest migration version present
// in migrationsFS, going by the NNNNNN_name.up.sql naming convention.
func GetLatestMigrationVersion(migrationsFS fs.FS) (uint, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var latest uint64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		idx := strings.Index(name, "_")
		if idx <= 0 {
			continue
		}
		v, err := strconv.ParseUint(name[:idx], 10, 32)
		if err != nil {
			continue
		}
		if v > latest {
			latest = v
		}
	}

	if latest == 0 {
		return 0, fmt.Errorf("no migration files found")
	}
	return uint(latest), nil
}
