package middleware

import (
	"net/http"
	"strings"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/service"
)

// RequireRole gates a route on the role hierarchy. No session is 401;
// a session with an insufficient role is 403 naming the missing
// capability, never the hierarchy itself.
func RequireRole(authz service.RoleAuthorizer, required ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
				return
			}
			if !authz.HasRole(claims.Role, required...) {
				response.Error(w, r, http.StatusForbidden, response.CodeForbidden, "insufficient role for this operation", map[string]string{
					"required": requiredLabel(required),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requiredLabel(required []domain.Role) string {
	labels := make([]string, 0, len(required))
	for _, role := range required {
		labels = append(labels, strings.ToLower(string(role)))
	}
	return strings.Join(labels, ",")
}
