package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id int64, role Role) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	CountByRole(ctx context.Context, role Role) (int, error)
}

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const userColumns = "id, username, full_name, password_hash, role, is_active, created_at, updated_at"

// SQLUserRepository implements UserRepository on SQLite or Postgres.
// Queries are written with ? placeholders and rebound for the driver.
type SQLUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// userRow mirrors the users table.
type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	FullName     sql.NullString `db:"full_name"`
	PasswordHash string         `db:"password_hash"`
	Role         string         `db:"role"`
	IsActive     int            `db:"is_active"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

func (r userRow) toUser() *User {
	u := &User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         Role(r.Role),
		IsActive:     r.IsActive != 0,
	}
	if r.FullName.Valid {
		u.FullName = r.FullName.String
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt) //nolint:errcheck // format is controlled
	return u
}

// Create inserts a new user account and fills in its ID and timestamps.
// The UNIQUE constraint on username makes the insert atomic: a concurrent
// duplicate fails with ErrUsernameExists.
func (r *SQLUserRepository) Create(ctx context.Context, user *User) error {
	if user.Role == "" {
		user.Role = RoleStudent
	}

	now := time.Now().UTC().Format(time.RFC3339)

	var id int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(
		`INSERT INTO users (username, full_name, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		user.Username, nullString(user.FullName), user.PasswordHash,
		string(user.Role), boolToInt(user.IsActive), now, now,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID = id
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by their username.
func (r *SQLUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// List returns all users ordered by ID.
func (r *SQLUserRepository) List(ctx context.Context) ([]User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toUser())
	}
	return users, nil
}

// UpdateRole sets a user's role in a single statement and returns the
// updated record.
func (r *SQLUserRepository) UpdateRole(ctx context.Context, id int64, role Role) (*User, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var row userRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ? RETURNING `+userColumns),
		string(role), now, id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating role: %w", err)
	}
	return row.toUser(), nil
}

// UpdatePassword changes a user's password hash.
func (r *SQLUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // supported by both drivers
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountByRole returns the number of accounts holding role.
func (r *SQLUserRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind("SELECT COUNT(*) FROM users WHERE role = ?"), string(role)); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// getUser executes a query and scans a single user result.
func (r *SQLUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return row.toUser(), nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}
