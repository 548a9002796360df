package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"promptly.app/internal/auth"
	"promptly.app/internal/inbox"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

var publicPaths = []string{
	"/api/auth/login",
	"/api/webhooks",
	"/api/instagram/callback",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			// EventSource cannot set headers, so the stream endpoint
			// also accepts the token as a query parameter.
			if qt := strings.TrimSpace(r.URL.Query().Get("token")); qt != "" {
				token, err = qt, nil
			}
		}
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.tokens.ParseAndValidate(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// The user must still exist; a deleted user's token is dead.
		user, err := a.store.GetUser(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, inbox.ErrNotFound) {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			respondError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		role, err := auth.ParseRole(user.Role)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "authentication error")
			return
		}

		principal := auth.Principal{UserID: user.ID, Role: role, BrandID: user.BrandID}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a subtree on the caller's role.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="promptly"`)
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if _, err := auth.Authorize(principal, auth.Requirement{Roles: []auth.Role{role}}); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="promptly", error="insufficient_scope"`)
				respondError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
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
