package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// Resilience tests verify that the auth subsystem handles failure scenarios
// gracefully. These tests use the TestResilience_ prefix for easy filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

// TestResilience_ConcurrentDuplicateRegistration verifies that racing
// registrations for one username produce exactly one account. The service
// lookup can be passed by every goroutine; only the UNIQUE constraint stops
// the losers.
func TestResilience_ConcurrentDuplicateRegistration(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterInput{
				Username: "racer",
				Password: fmt.Sprintf("pw-%d", i),
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, duplicates int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrUsernameExists):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if duplicates != attempts-1 {
		t.Errorf("duplicates = %d, want %d", duplicates, attempts-1)
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 1 {
		t.Errorf("stored users = %d, want 1", len(users))
	}
}

// TestResilience_RepositoryDuplicateBackstop exercises the insert path
// directly, bypassing the service lookup entirely.
func TestResilience_RepositoryDuplicateBackstop(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, &User{Username: "same", PasswordHash: "x", Role: RoleStudent, IsActive: true})
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrUsernameExists) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful inserts = %d, want 1", ok)
	}
}

// TestResilience_ConcurrentResolve verifies token resolution is safe to run
// from many request goroutines at once.
func TestResilience_ConcurrentResolve(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedTestUser(t, repo, "alice", RoleStudent)

	token, err := svc.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(ctx, token.AccessToken); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

// TestResilience_ContextCancelled verifies repository calls honour the
// caller's cancellation.
func TestResilience_ContextCancelled(t *testing.T) {
	svc, repo := newTestService(t)
	seedTestUser(t, repo, "alice", RoleStudent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Login(ctx, "alice", testPassword)
	if err == nil {
		t.Fatal("Login() with cancelled context should fail")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("cancellation must surface as an internal error, not bad credentials")
	}
}
