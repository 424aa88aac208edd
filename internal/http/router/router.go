package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/swiftfix/backoffice/internal/config"
	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/handler"
	"github.com/swiftfix/backoffice/internal/http/middleware"
	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/ratelimit"
	"github.com/swiftfix/backoffice/internal/service"
)

const maxBodyBytes = 1 << 20

// Dependencies carries everything the route tree needs. PricingHandler
// and QuoteHandler are optional mounts for the public storefront
// endpoints; when nil the routes are simply absent.
type Dependencies struct {
	Auth       *handler.AuthHandler
	Admin      *handler.AdminHandler
	Verifier   middleware.SessionVerifier
	Authorizer service.RoleAuthorizer

	RateLimiter ratelimit.Backend
	Presets     map[string]ratelimit.Config

	CookieSecure bool
	CORSOrigins  []string

	PricingHandler http.Handler
	QuoteHandler   http.Handler

	Ready func() error
}

// New assembles the chi route tree.
func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(maxBodyBytes))
	if len(deps.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.CORSOrigins))
	}

	r.Get("/healthz/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz/ready", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				response.Error(w, req, http.StatusServiceUnavailable, response.CodeInternal, "not ready", nil)
				return
			}
		}
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ready"})
	})

	authn := middleware.Authenticate(deps.Verifier, deps.CookieSecure)
	limit := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimit(deps.RateLimiter, scope, deps.Presets[scope])
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(limit(config.PresetAPI))

		api.Route("/auth", func(auth chi.Router) {
			auth.With(limit(config.PresetAuth)).Post("/login", deps.Auth.Login)
			auth.With(limit(config.PresetAuth)).Post("/refresh", deps.Auth.Refresh)

			auth.Group(func(priv chi.Router) {
				priv.Use(authn)
				priv.Post("/logout", deps.Auth.Logout)
				priv.Get("/me", deps.Auth.Me)
				priv.Post("/change-password", deps.Auth.ChangePassword)
				priv.Get("/sessions", deps.Auth.Sessions)
				priv.Delete("/sessions/{session_id}", deps.Auth.RevokeSession)
			})
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authn)
			users.With(middleware.RequireRole(deps.Authorizer, domain.RoleManager)).Get("/", deps.Admin.ListUsers)
			users.With(middleware.RequireRole(deps.Authorizer, domain.RoleAdmin)).Post("/", deps.Admin.CreateUser)
			// The update path admits any authenticated caller; the
			// self-service rules live in the user service.
			users.Patch("/{id}", deps.Admin.UpdateUser)
			users.With(middleware.RequireRole(deps.Authorizer, domain.RoleAdmin)).Post("/{id}/reset-password", deps.Admin.ResetPassword)
		})

		api.With(authn, middleware.RequireRole(deps.Authorizer, domain.RoleAdmin)).
			Get("/admin/activity", deps.Admin.Activity)

		if deps.PricingHandler != nil {
			api.With(limit(config.PresetPricing)).Mount("/pricing", deps.PricingHandler)
		}
		if deps.QuoteHandler != nil {
			api.With(limit(config.PresetQuote)).Mount("/quotes", deps.QuoteHandler)
		}
	})

	return r
}
