package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/saromerop2/API-de-colegio/internal/audit"
	"github.com/saromerop2/API-de-colegio/internal/auth"
)

type setRoleRequest struct {
	Role string `json:"role"`
}

// handleListUsers returns all user accounts ordered by ID.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// handleSetUserRole changes a user's role. The role comes from the "role"
// query parameter or a JSON body.
func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	// Ids that parse but match no row, including zero and negatives, are a 404.
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "user id must be an integer")
		return
	}

	raw := r.URL.Query().Get("role")
	if raw == "" {
		var req setRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeBadRequest(w, "invalid JSON body")
			return
		}
		raw = req.Role
	}

	role, err := auth.ParseRole(raw)
	if err != nil {
		writeValidationError(w, "role must be admin or student")
		return
	}

	user, err := s.auth.SetRole(r.Context(), id, role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "user not found")
		case errors.Is(err, auth.ErrInvalidInput):
			writeValidationError(w, "role must be admin or student")
		default:
			s.logger.Error("set role failed", "user_id", id, "error", err)
			writeInternalError(w, "failed to update role")
		}
		return
	}

	actorID := ""
	if actor, ok := auth.PrincipalFromContext(r.Context()); ok {
		actorID = strconv.FormatInt(actor.ID, 10)
	}
	s.auditLog(audit.ActionRoleChange, audit.EntityUser, strconv.FormatInt(user.ID, 10), actorID,
		map[string]any{"role": string(user.Role), "username": user.Username})

	writeJSON(w, http.StatusOK, user)
}
