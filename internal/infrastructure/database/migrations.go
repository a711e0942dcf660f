package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"
)

// MigrationsFS should be set by the main package to embed migration files.
// This allows the migrations to be compiled into the binary.
//
// Files for each dialect live in a subdirectory named after it:
//
//	//go:embed sqlite/*.sql postgres/*.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	    database.MigrationsDir = "."
//	}
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS holding the per-dialect
// subdirectories. Can be set to "." if they are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// migrationFilePattern matches YYYYMMDD_HHMMSS_description.up.sql.
// Other files in the dialect directory are ignored.
var migrationFilePattern = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.up\.sql$`)

// Migration is one forward schema change.
type Migration struct {
	Version string // YYYYMMDD_HHMMSS
	Name    string
	SQL     string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// MigrationStatus compares the schema_migrations table with the embedded files.
type MigrationStatus struct {
	Applied []MigrationRecord
	Pending []Migration
}

// Current returns the most recently applied version, or "" for an empty schema.
func (s *MigrationStatus) Current() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Migrate applies all pending migrations for the active dialect, oldest first.
//
// Each migration runs in its own transaction together with its
// schema_migrations row. If one fails, earlier ones stay committed and
// re-running Migrate continues from the failed version.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrationStatus reports applied and pending migrations. It creates the
// schema_migrations table when missing, so it is safe on a fresh database.
func (db *DB) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	var rows []struct {
		Version   string `db:"version"`
		AppliedAt string `db:"applied_at"`
	}
	if err := db.SelectContext(ctx, &rows,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	); err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}

	status := &MigrationStatus{Applied: make([]MigrationRecord, 0, len(rows))}
	done := make(map[string]bool, len(rows))
	for _, row := range rows {
		appliedAt, _ := time.Parse(time.RFC3339, row.AppliedAt) //nolint:errcheck // written by applyMigration
		status.Applied = append(status.Applied, MigrationRecord{Version: row.Version, AppliedAt: appliedAt})
		done[row.Version] = true
	}

	migrations, err := loadMigrations(db.dialect)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	for _, m := range migrations {
		if !done[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// applyMigration applies a single migration within a transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// loadMigrations reads the dialect's directory from MigrationsFS. A missing
// filesystem or directory means there is nothing to apply.
func loadMigrations(dialect Dialect) ([]Migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil
	}

	dir := path.Join(MigrationsDir, string(dialect))
	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return nil, nil
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFilename splits "20260301_090000_create_users.up.sql" into
// its version and name.
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
