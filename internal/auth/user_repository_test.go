package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGetByID(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	hash, _ := testHasher().Hash("password123")
	user := &User{
		Username:     "testuser",
		FullName:     "Test User",
		PasswordHash: hash,
		Role:         RoleStudent,
		IsActive:     true,
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == 0 {
		t.Fatal("Create() should assign an ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Username != "testuser" {
		t.Errorf("Username = %q, want %q", got.Username, "testuser")
	}
	if got.FullName != "Test User" {
		t.Errorf("FullName = %q, want %q", got.FullName, "Test User")
	}
	if got.Role != RoleStudent {
		t.Errorf("Role = %q, want %q", got.Role, RoleStudent)
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if got.PasswordHash != hash {
		t.Error("PasswordHash should round-trip")
	}
}

func TestUserRepository_StableIncreasingIDs(t *testing.T) {
	repo := NewUserRepository(testDB(t))

	first := seedTestUser(t, repo, "first", RoleStudent)
	second := seedTestUser(t, repo, "second", RoleStudent)

	if second.ID <= first.ID {
		t.Errorf("IDs not increasing: %d then %d", first.ID, second.ID)
	}
}

func TestUserRepository_CreateDefaultsRole(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	user := &User{Username: "norole", PasswordHash: "x", IsActive: true}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByUsername(ctx, "norole")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.Role != RoleStudent {
		t.Errorf("Role = %q, want student default", got.Role)
	}
	if got.FullName != "" {
		t.Errorf("FullName = %q, want empty (NULL)", got.FullName)
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	seeded := seedTestUser(t, repo, "findme", RoleAdmin)

	got, err := repo.GetByUsername(ctx, "findme")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != seeded.ID {
		t.Errorf("ID = %d, want %d", got.ID, seeded.ID)
	}

	if _, err := repo.GetByUsername(ctx, "FINDME"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("usernames are case-sensitive; got error %v", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByUsername(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.UpdateRole(ctx, 9999, RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateRole() error = %v, want ErrUserNotFound", err)
	}
	if err := repo.UpdatePassword(ctx, 9999, "hash"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	seedTestUser(t, repo, "duplicate", RoleStudent)

	dup := &User{Username: "duplicate", PasswordHash: "x", Role: RoleStudent, IsActive: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("List() on empty table = %v, want empty non-nil slice", users)
	}

	seedTestUser(t, repo, "charlie", RoleStudent)
	seedTestUser(t, repo, "alice", RoleAdmin)
	seedTestUser(t, repo, "bob", RoleStudent)

	users, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("List() returned %d users, want 3", len(users))
	}
	want := []string{"charlie", "alice", "bob"}
	for i, u := range users {
		if u.Username != want[i] {
			t.Errorf("users[%d] = %q, want %q (ordered by id)", i, u.Username, want[i])
		}
	}
}

func TestUserRepository_UpdateRole(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	user := seedTestUser(t, repo, "promote", RoleStudent)

	updated, err := repo.UpdateRole(ctx, user.ID, RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	if updated.Role != RoleAdmin {
		t.Errorf("returned Role = %q, want admin", updated.Role)
	}
	if updated.Username != "promote" {
		t.Errorf("returned Username = %q, want promote", updated.Username)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("stored Role = %q, want admin", got.Role)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	user := seedTestUser(t, repo, "rotate", RoleStudent)

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", got.PasswordHash)
	}
}

func TestUserRepository_CountByRole(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	seedTestUser(t, repo, "a1", RoleAdmin)
	seedTestUser(t, repo, "s1", RoleStudent)
	seedTestUser(t, repo, "s2", RoleStudent)

	admins, err := repo.CountByRole(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("CountByRole(admin) error = %v", err)
	}
	if admins != 1 {
		t.Errorf("admins = %d, want 1", admins)
	}

	students, err := repo.CountByRole(ctx, RoleStudent)
	if err != nil {
		t.Fatalf("CountByRole(student) error = %v", err)
	}
	if students != 2 {
		t.Errorf("students = %d, want 2", students)
	}
}

func TestUserRepository_RoleCheckConstraint(t *testing.T) {
	repo := NewUserRepository(testDB(t))

	err := repo.Create(context.Background(), &User{Username: "bad", PasswordHash: "x", Role: "owner", IsActive: true})
	if err == nil {
		t.Fatal("Create() with unknown role should violate the CHECK constraint")
	}
	if errors.Is(err, ErrUsernameExists) {
		t.Error("CHECK failure must not be reported as a duplicate")
	}
}
