package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// dummyPassword is hashed once so that logins for unknown usernames pay the
// same verification cost as real ones.
const dummyPassword = "timing-equaliser-not-a-real-password"

// Service orchestrates registration, login, token resolution and role changes.
type Service struct {
	users  UserRepository
	hasher *Hasher
	tokens *TokenCodec
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the auth service. A nil logger discards output.
func NewService(users UserRepository, hasher *Hasher, tokens *TokenCodec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Validate checks field formats.
func (in RegisterInput) Validate() error {
	if !IsValidUsername(in.Username) {
		return fmt.Errorf("%w: username must be 1-64 characters of letters, digits, '.', '_' or '-'", ErrInvalidInput)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(in.Password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	if len(in.FullName) > maxFullNameLength {
		return fmt.Errorf("%w: full_name must be at most %d bytes", ErrInvalidInput, maxFullNameLength)
	}
	return nil
}

// Register creates a student account. Duplicate usernames fail with
// ErrUsernameExists, whether caught by the lookup or by the insert.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         RoleStudent,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues an access token carrying the
// user's current role. Unknown usernames, wrong passwords and inactive
// accounts all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("looking up user: %w", err)
		}
		s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	signed, expiresAt, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		ExpiresAt:   expiresAt,
		UserID:      user.ID,
	}, nil
}

// rehash upgrades a legacy or outdated hash. Failure only costs the upgrade.
func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehashing password failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.Info("password hash upgraded", "user_id", user.ID)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("generating dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Resolve decodes a bearer token and loads its subject. Any token problem,
// a deleted subject or a deactivated account returns ErrUnauthorized.
func (s *Service) Resolve(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("token subject no longer exists", "username", claims.Subject)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("loading token subject: %w", err)
	}

	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// SetRole changes a user's role. The caller is responsible for checking
// that the acting principal is an admin.
func (s *Service) SetRole(ctx context.Context, id int64, role Role) (*User, error) {
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: role must be admin or student", ErrInvalidInput)
	}

	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("setting role: %w", err)
	}

	s.logger.Info("user role changed", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// ListUsers returns every account ordered by ID.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}
