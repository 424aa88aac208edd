package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/observability"
	"github.com/swiftfix/backoffice/internal/ratelimit"
)

// anonymousIdentity buckets requests with no derivable client address.
// Clients behind the same NAT or proxy with stripped headers share one
// budget; that tradeoff is accepted.
const anonymousIdentity = "anonymous"

// RateLimit applies a fixed-window budget to the wrapped routes. The
// counter key is client identity plus scope, so the same client has
// independent budgets per endpoint group. A backend error fails OPEN:
// availability wins over strict throttling during a storage outage,
// and the error is logged rather than surfaced to the client.
func RateLimit(backend ratelimit.Backend, scope string, cfg ratelimit.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIdentity(r) + ":" + scope
			res, err := backend.Check(r.Context(), key, cfg)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), scope, "backend_error")
				slog.ErrorContext(r.Context(), "rate limit backend unavailable, failing open",
					"scope", scope,
					"error", err.Error(),
				)
				next.ServeHTTP(w, r)
				return
			}
			writeRateLimitHeaders(w.Header(), cfg.MaxRequests, res.Remaining, res.ResetAt)
			if !res.Allowed {
				observability.RecordRateLimitDecision(r.Context(), scope, "deny")
				w.Header().Set("Retry-After", retryAfterSeconds(time.Until(res.ResetAt)))
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentity derives the rate-limit identity: the CDN-set client
// address first, then standard forwarding headers, then the socket
// peer, and finally a shared anonymous bucket.
func ClientIdentity(r *http.Request) string {
	for _, header := range []string{"CF-Connecting-IP", "True-Client-IP", "X-Real-IP"} {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if v := strings.TrimSpace(first); v != "" {
			return v
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return anonymousIdentity
}

// Reset is exposed in epoch milliseconds.
func writeRateLimitHeaders(h http.Header, limit, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(remaining, 0)))
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.UnixMilli()))
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
