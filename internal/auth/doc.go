// Package auth provides authentication and authorisation for the school API.
//
// It implements a two-role model (student, admin) with:
//   - Argon2id password hashing, with bcrypt verification for imported accounts
//   - Stateless HMAC-signed JWT access tokens with a fixed expiry
//   - A SQL user repository shared by SQLite and Postgres
//   - Role gates evaluated after authentication, so 401 always precedes 403
//
// Tokens carry the role held at login. Gates check the role stored in the
// database when the token is resolved, so a demotion takes effect on the
// next request even though the token itself stays valid until it expires.
package auth
