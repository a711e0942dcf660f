package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// These tests drive the repository through the Postgres dialect with
// sqlmock: placeholders must be rebound to $N and pq errors mapped.

func newPostgresMock(t *testing.T) (*SQLUserRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewUserRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

var userColumnNames = []string{"id", "username", "full_name", "password_hash", "role", "is_active", "created_at", "updated_at"}

func TestPostgresUserRepository_Create(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7)")).
		WithArgs("alice", nil, "hash", "student", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	user := &User{Username: "alice", PasswordHash: "hash", Role: RoleStudent, IsActive: true}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID != 42 {
		t.Errorf("ID = %d, want 42", user.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepository_CreateUniqueViolation(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &User{Username: "alice", PasswordHash: "hash", IsActive: true})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() error = %v, want ErrUsernameExists", err)
	}
}

func TestPostgresUserRepository_CreateOtherError(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23514", Message: "check constraint"})

	err := repo.Create(context.Background(), &User{Username: "alice", PasswordHash: "hash", IsActive: true})
	if err == nil || errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() error = %v, want non-duplicate failure", err)
	}
}

func TestPostgresUserRepository_GetByUsername(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumnNames).
			AddRow(7, "alice", "Alice Liddell", "hash", "admin", 1, "2026-03-01T09:00:00Z", "2026-03-01T09:00:00Z"))

	user, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if user.ID != 7 || user.Role != RoleAdmin || user.FullName != "Alice Liddell" || !user.IsActive {
		t.Errorf("unexpected user %+v", user)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreatedAt should be parsed")
	}
}

func TestPostgresUserRepository_UpdateRoleNotFound(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 RETURNING")).
		WithArgs("admin", sqlmock.AnyArg(), int64(99)).
		WillReturnRows(sqlmock.NewRows(userColumnNames))

	if _, err := repo.UpdateRole(context.Background(), 99, RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateRole() error = %v, want ErrUserNotFound", err)
	}
}

func TestPostgresUserRepository_StoreUnavailable(t *testing.T) {
	repo, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY id ASC")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.List(context.Background())
	if err == nil {
		t.Fatal("List() should surface store errors")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Error("store failure must not look like a missing user")
	}
}
