package auth

import (
	"context"
	"net/http"
	"strings"
)

// RoleSet is the set of roles admitted by a gate.
type RoleSet []Role

// Role gates used by the HTTP layer.
var (
	AdminOnly   = RoleSet{RoleAdmin}
	StudentArea = RoleSet{RoleStudent, RoleAdmin}
)

// Allows reports whether r is in the set.
func (rs RoleSet) Allows(r Role) bool {
	for _, allowed := range rs {
		if allowed == r {
			return true
		}
	}
	return false
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate resolves the principal behind a request's bearer token.
// A missing or unusable token returns ErrUnauthorized.
func (s *Service) Authenticate(r *http.Request) (*User, error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.Resolve(r.Context(), token)
}

// Authorize checks a resolved principal against a role gate. Authentication
// always comes first: a nil principal is ErrUnauthorized, never ErrForbidden.
func Authorize(principal *User, allowed RoleSet) error {
	if principal == nil {
		return ErrUnauthorized
	}
	if !allowed.Allows(principal.Role) {
		return ErrForbidden
	}
	return nil
}

type principalKey struct{}

// WithPrincipal attaches the authenticated user to ctx.
func WithPrincipal(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// PrincipalFromContext returns the user attached by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(principalKey{}).(*User)
	return user, ok && user != nil
}
