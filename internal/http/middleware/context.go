package middleware

import (
	"context"

	"github.com/swiftfix/backoffice/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ClaimsFromContext returns the verified session claims placed by
// Authenticate.
func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*security.SessionClaims)
	return c, ok
}

func withClaims(ctx context.Context, claims *security.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
