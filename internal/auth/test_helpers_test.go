package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/saromerop2/API-de-colegio/internal/infrastructure/database"
	_ "github.com/saromerop2/API-de-colegio/migrations" // registers embedded schema
)

const (
	testSecret   = "test-secret-key-at-least-32-chars!"
	testPassword = "correct-horse-battery-staple"
)

// testDB creates a temporary SQLite database with the real migrations applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	// Use a temp file so WAL mode works (in-memory doesn't support it)
	db, err := database.Open(ctx, database.Config{
		URL:         filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// testHasher returns a hasher with a minimal work factor so tests stay fast.
func testHasher() *Hasher {
	return NewHasher(PasswordParams{Memory: 1024, Time: 1, Threads: 1})
}

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec
}

// newTestService returns a service over a fresh database plus its repository.
func newTestService(t *testing.T) (*Service, *SQLUserRepository) {
	t.Helper()
	repo := NewUserRepository(testDB(t))
	return NewService(repo, testHasher(), testCodec(t), nil), repo
}

// seedTestUser inserts an active user with testPassword.
func seedTestUser(t *testing.T, repo UserRepository, username string, role Role) *User {
	t.Helper()

	hash, err := testHasher().Hash(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{
		Username:     username,
		FullName:     "Test " + username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	return user
}
