// Package database provides SQLite and Postgres connectivity for the school
// auth service.
//
// This package manages:
//   - Parsing the configured connection URL into a dialect and driver target
//   - SQLite connections with WAL mode and busy timeout
//   - Postgres connections via lib/pq with a sized pool
//   - Embedded schema migrations, one directory per dialect
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{URL: cfg.Database.URL})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Migrations are forward-only .up.sql files; fixes ship as a new version
//   - SQLite and Postgres variants share a version number
package database
