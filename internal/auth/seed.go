package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the first admin account if none exists. When password
// is empty a random one is generated and returned, never logged; the caller
// shows it to the operator once. Returns an empty string if seeding was skipped or the
// password was supplied.
func SeedAdmin(ctx context.Context, users UserRepository, hasher *Hasher, username, password string, logger *slog.Logger) (string, error) {
	count, err := users.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("checking admin count: %w", err)
	}

	if count > 0 {
		logger.Info("admin exists, skipping admin seed")
		return "", nil
	}

	if !IsValidUsername(username) {
		return "", fmt.Errorf("%w: invalid bootstrap admin username %q", ErrInvalidInput, username)
	}

	generated := ""
	if password == "" {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		generated = hex.EncodeToString(passwordBytes)
		password = generated
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     username,
		FullName:     "School Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}

	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return "", fmt.Errorf("bootstrap admin username %q is taken by a non-admin account", username)
		}
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated != "" {
		logger.Warn("seed admin account created with a generated password",
			"username", username,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", username)
	}

	return generated, nil
}
