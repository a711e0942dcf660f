// School auth service.
//
// Registers students, issues bearer tokens on password login and serves
// role-gated endpoints for students and admins.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/saromerop2/API-de-colegio/migrations"

	"github.com/saromerop2/API-de-colegio/internal/api"
	"github.com/saromerop2/API-de-colegio/internal/audit"
	"github.com/saromerop2/API-de-colegio/internal/auth"
	"github.com/saromerop2/API-de-colegio/internal/infrastructure/config"
	"github.com/saromerop2/API-de-colegio/internal/infrastructure/database"
	"github.com/saromerop2/API-de-colegio/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting school auth service",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		URL:          cfg.Database.URL,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "dialect", db.Dialect(), "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migrations complete",
		"schema_version", status.Current(),
		"applied", len(status.Applied),
		"pending", len(status.Pending),
	)

	hasher := auth.NewHasher(auth.PasswordParams{
		Memory:  cfg.Security.Password.MemoryKiB,
		Time:    cfg.Security.Password.Iterations,
		Threads: cfg.Security.Password.Threads,
	})
	tokens, err := auth.NewTokenCodec(cfg.Security.JWT.Secret, cfg.Security.JWT.Algorithm, cfg.GetAccessTokenTTL())
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	users := auth.NewUserRepository(db.DB)
	authService := auth.NewService(users, hasher, tokens, log.With("component", "auth").Logger)

	if cfg.Bootstrap.Enabled {
		generated, seedErr := auth.SeedAdmin(ctx, users, hasher,
			cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword, log.Logger)
		if seedErr != nil {
			return fmt.Errorf("seeding admin account: %w", seedErr)
		}
		// Kept out of the structured log so it never reaches log aggregation.
		printBootstrapPassword(os.Stderr, cfg.Bootstrap.AdminUsername, generated)
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		DB:        db,
		Auth:      authService,
		AuditRepo: audit.NewRepository(db.DB),
		Registry:  prometheus.NewRegistry(),
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// printBootstrapPassword writes a generated admin password to w once.
// It does nothing when the password came from configuration.
func printBootstrapPassword(w io.Writer, username, password string) {
	if password == "" {
		return
	}
	fmt.Fprintf(w, "\nBootstrap admin account %q created with password:\n\n    %s\n\nChange it immediately; it will not be shown again.\n\n", username, password)
}

// getConfigPath returns the configuration file path.
// SCHOOLAUTH_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("SCHOOLAUTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
