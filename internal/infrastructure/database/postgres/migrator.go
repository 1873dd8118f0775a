// Schema lifecycle for the memory graph. The Store is a cache over the
// notebook filesystem (§4.1), so schema management here leans destructive by
// design: the Tabula Rasa reset drops every compound, molecule, atom, edge
// and engram and trusts the ingestion pipeline to re-populate from files.

package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// withMigrator opens a migrate.Migrate instance for the given DSN and
// migrations source, runs fn against it, and closes it. Every schema
// operation below goes through this one seam so none of them can leak the
// underlying instance.
func withMigrator(dbURL, migrationsPath string, fn func(*migrate.Migrate) error) error {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}

// RunMigrations brings the memory-graph schema up to the latest version.
// Called at boot when another live process already owns the store (a boot
// that wins ownership runs TabulaRasa instead) and by `anchor migrate up`.
// An already-current schema is not an error.
func RunMigrations(dbURL, migrationsPath string) error {
	return withMigrator(dbURL, migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// RollbackMigration walks the schema back by steps versions. Exposed through
// `anchor migrate rollback` for operators undoing a bad upgrade; the
// retrieval core itself never rolls back.
func RollbackMigration(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be greater than 0, got %d", steps)
	}
	return withMigrator(dbURL, migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("no migrations to roll back")
			}
			return fmt.Errorf("roll back %d step(s): %w", steps, err)
		}
		return nil
	})
}

// MigrationStatus reports the schema's current version and whether a prior
// migration died partway through (dirty). A dirty schema is exactly the
// "corrupted directory" case of §4.1: the next boot answers it with
// TabulaRasa rather than manual repair.
func MigrationStatus(dbURL, migrationsPath string) (version uint, dirty bool, err error) {
	err = withMigrator(dbURL, migrationsPath, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if verr != nil {
			if errors.Is(verr, migrate.ErrNilVersion) {
				return nil // fresh database, no migrations applied
			}
			return fmt.Errorf("read migration version: %w", verr)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

// TabulaRasa wipes the memory graph and rebuilds the schema from scratch:
// every migration down to zero, then every migration back up. This is the
// boot-time recovery policy of §4.1/§9 — the store is a cache, the notebook
// filesystem is the source of truth, and the ingestion pipeline re-populates
// after the wipe. All stored compounds, molecules, atoms, edges and engrams
// are destroyed.
func TabulaRasa(dbURL, migrationsPath string) error {
	return withMigrator(dbURL, migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("tabula rasa: drop schema: %w", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("tabula rasa: rebuild schema: %w", err)
		}
		return nil
	})
}

// ForceMigrationVersion stamps the schema version without running any
// migration, the escape hatch for a dirty state an operator has fixed by
// hand. Prefer TabulaRasa: for this engine a wipe is cheaper and safer than
// surgery (§9).
func ForceMigrationVersion(dbURL, migrationsPath string, version int) error {
	return withMigrator(dbURL, migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		return nil
	})
}
