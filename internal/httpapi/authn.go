package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates every non-public request: bearer extraction, token
// verification, profile lookup. Each denial kind keeps its own status; none
// of these are resource-access denials, so none audit as access_denied.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		identity, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			case errors.Is(err, auth.ErrNotFound):
				writeError(w, r, http.StatusForbidden, "user not found")
			case errors.Is(err, auth.ErrInactive):
				writeError(w, r, http.StatusForbidden, "account is disabled")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// requireOperation enforces the capability table for one protected operation.
// A role outside the allow-list is the one denial kind that must reach the
// audit trail, as access_denied, before the request is rejected.
func (a *API) requireOperation(w http.ResponseWriter, r *http.Request, op auth.Operation) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return auth.Identity{}, false
	}
	if err := auth.Authorize(identity, op); err != nil {
		a.recorder.Record(r.Context(), audit.Entry{
			ActorID:      identity.ID,
			Action:       audit.ActionAccessDenied,
			ResourceType: "authorization",
			Details: map[string]any{
				"operation": string(op),
				"role":      string(identity.Role),
			},
		})
		writeError(w, r, http.StatusForbidden, "access denied")
		return auth.Identity{}, false
	}
	return identity, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
