package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/saromerop2/API-de-colegio/internal/audit"
	"github.com/saromerop2/API-de-colegio/internal/auth"
)

// loginRequest is the credential pair accepted by POST /token.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a student account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			s.metrics.authEvent("register", "conflict")
			writeConflict(w, "username already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			s.metrics.authEvent("register", "invalid")
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("register failed", "error", err, "request_id", requestIDFrom(r.Context()))
			writeInternalError(w, "failed to register user")
		}
		return
	}

	s.metrics.authEvent("register", "success")
	s.auditLog(audit.ActionRegister, audit.EntityUser, strconv.FormatInt(user.ID, 10), "",
		map[string]any{"username": user.Username})

	writeJSON(w, http.StatusCreated, user)
}

// handleToken exchanges a username and password for a bearer token. It
// accepts the OAuth2 password form and a JSON body with the same fields.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLoginRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeValidationError(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.authEvent("login", "failure")
			s.auditLog(audit.ActionLoginFailed, audit.EntityUser, "", "",
				map[string]any{"username": auditUsername(req.Username)})
			writeUnauthorized(w, "incorrect username or password")
			return
		}
		s.logger.Error("login failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, "failed to log in")
		return
	}

	s.metrics.authEvent("login", "success")
	userID := strconv.FormatInt(token.UserID, 10)
	s.auditLog(audit.ActionLogin, audit.EntityUser, userID, userID,
		map[string]any{"username": req.Username})

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, token)
}

// invalidUsernameMarker replaces submitted usernames that could never exist.
const invalidUsernameMarker = "<invalid>"

// auditUsername returns a username safe to store: anything outside the
// username format is replaced by a fixed marker so unauthenticated callers
// cannot write arbitrary data into the audit table.
func auditUsername(username string) string {
	if !auth.IsValidUsername(username) {
		return invalidUsernameMarker
	}
	return username
}

// decodeLoginRequest reads credentials from a JSON or form-encoded body.
func decodeLoginRequest(r *http.Request) (loginRequest, error) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty media type falls through to form parsing
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleStudentArea greets students and admins.
func (s *Server) handleStudentArea(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"msg":  fmt.Sprintf("Hello %s, welcome to the student area", user.Username),
		"role": user.Role,
	})
}
