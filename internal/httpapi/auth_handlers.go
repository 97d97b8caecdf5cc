package httpapi

import (
	"errors"
	"net/http"
	"time"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// Failed logins have no actor; the attempted email goes into the
			// detail payload instead.
			a.recorder.Record(r.Context(), audit.Entry{
				Action:       audit.ActionLogin,
				ResourceType: "auth",
				Details:      map[string]any{"email": req.Email, "success": false},
			})
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrInactive):
			writeError(w, r, http.StatusForbidden, "account is disabled")
		default:
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	a.recorder.Record(r.Context(), audit.Entry{
		ActorID:      session.Identity.ID,
		Action:       audit.ActionLogin,
		ResourceType: "auth",
		ResourceID:   session.Identity.ID,
		Details:      map[string]any{"success": true},
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.Identity,
	})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	profile, err := a.auth.Profile(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	// Tokens are stateless; the client discards its copy. The logout itself
	// is still a sensitive action and gets its audit record.
	a.recorder.Record(r.Context(), audit.Entry{
		ActorID:      identity.ID,
		Action:       audit.ActionLogout,
		ResourceType: "auth",
		ResourceID:   identity.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "logout successful"})
}
