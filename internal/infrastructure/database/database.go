package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// defaultMaxOpenConns applies to Postgres when the config leaves it unset.
	defaultMaxOpenConns = 10

	memoryPath = ":memory:"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect string

// Supported dialects. The value doubles as the migrations subdirectory name.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// DB wraps a sqlx connection with service-specific functionality.
// It provides migration support, health checks, and proper lifecycle management.
type DB struct {
	*sqlx.DB
	dialect Dialect
	path    string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// URL selects the backend and location. See ParseURL.
	URL string

	// WALMode enables Write-Ahead Logging for better concurrent access (SQLite only).
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds, SQLite only).
	BusyTimeout int

	// MaxOpenConns bounds the Postgres connection pool. SQLite always uses one.
	MaxOpenConns int
}

// ParseURL splits a connection URL into its dialect and driver target.
//
// Accepted forms:
//   - sqlite:///./school.db   relative path ./school.db
//   - sqlite:////var/school.db absolute path /var/school.db
//   - sqlite://:memory:       private in-memory database
//   - /var/school.db          bare SQLite path
//   - postgres://... or postgresql://... passed to lib/pq unchanged
func ParseURL(url string) (Dialect, string, error) {
	if url == "" {
		return "", "", fmt.Errorf("database url is empty")
	}

	scheme, rest, found := strings.Cut(url, "://")
	if !found {
		return DialectSQLite, url, nil
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		// sqlite:///x keeps the path after the third slash, as SQLAlchemy does.
		target := strings.TrimPrefix(rest, "/")
		if target == "" {
			return "", "", fmt.Errorf("database url %q has no path", url)
		}
		return DialectSQLite, target, nil
	case "postgres", "postgresql":
		return DialectPostgres, url, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// Open creates a new database connection with the specified configuration.
//
// For SQLite it performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures foreign keys, busy timeout and optional WAL mode
//  4. Sets appropriate file permissions (0600)
//
// For Postgres it sizes the pool. Both verify the connection with a ping.
//
// Parameters:
//   - ctx: Context bounding the connectivity check
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection or configuration fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, target, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch dialect {
	case DialectPostgres:
		dsn = target
	default:
		dsn, err = sqliteDSN(target, cfg)
		if err != nil {
			return nil, err
		}
	}

	sqlxDB, err := sqlx.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	configurePool(sqlxDB, dialect, target, cfg)

	db := &DB{
		DB:      sqlxDB,
		dialect: dialect,
	}
	if dialect == DialectSQLite {
		db.path = target
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlxDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if db.path != "" && db.path != memoryPath {
		// The file may not exist until the first write.
		_ = os.Chmod(db.path, filePermissions) //nolint:errcheck // Intentional
	}

	return db, nil
}

// sqliteDSN builds a go-sqlite3 connection string with pragmas.
// See: https://github.com/mattn/go-sqlite3#connection-string
func sqliteDSN(path string, cfg Config) (string, error) {
	if path == memoryPath {
		return "file::memory:?_foreign_keys=on", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn, nil
}

func configurePool(db *sqlx.DB, dialect Dialect, target string, cfg Config) {
	if dialect == DialectPostgres {
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = defaultMaxOpenConns
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(connMaxIdleTime)
		return
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if target == memoryPath {
		// Recycling the connection would discard the in-memory database.
		return
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

// Close closes the database connection gracefully.
// It should be called when the application shuts down.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Dialect returns the backend in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Path returns the filesystem path to the SQLite database file.
// It is empty for Postgres.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
// It performs a simple query to ensure the connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext executes a query that doesn't return rows (INSERT, UPDATE, DELETE).
// Placeholders are written as ? and rebound for the active dialect.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - query: SQL query with ? placeholders
//   - args: Arguments for placeholders
//
// Returns:
//   - sql.Result: Contains RowsAffected (LastInsertId is SQLite only)
//   - error: If execution fails
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
