package middleware

import (
	"net/http"
	"strings"

	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/security"
)

// SessionVerifier validates a raw token against both its signature and
// the session store. Implemented by service.TokenService.
type SessionVerifier interface {
	VerifySession(raw string) (*security.SessionClaims, error)
}

// Authenticate resolves the caller's identity from the session cookie,
// falling back to a bearer header for API clients. A missing, invalid
// or store-orphaned token is one and the same outcome: 401, and the
// stale cookie is cleared so the browser matches the server state.
func Authenticate(verifier SessionVerifier, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, security.SessionCookieName)
			fromCookie := raw != ""
			if raw == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
					raw = strings.TrimSpace(auth[7:])
				}
			}
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
				return
			}
			claims, err := verifier.VerifySession(raw)
			if err != nil {
				if fromCookie {
					security.ClearSessionCookie(w, secureCookies)
				}
				response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired session", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}
