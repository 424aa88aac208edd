package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/swiftfix/backoffice/internal/app"
	"github.com/swiftfix/backoffice/internal/config"
	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/handler"
	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/http/router"
	"github.com/swiftfix/backoffice/internal/observability"
	"github.com/swiftfix/backoffice/internal/ratelimit"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
	"github.com/swiftfix/backoffice/internal/service"
)

func main() {
	root := &cobra.Command{
		Use:   "backoffice",
		Short: "SwiftFix back-office API server",
	}
	root.AddCommand(newServeCommand(), newSweepCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := migrate(db); err != nil {
		return err
	}

	backend, stopBackend, err := buildRateLimitBackend(cfg, db)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	refreshers := repository.NewRefreshTokenRepository(db)
	activity := repository.NewActivityRepository(db)

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	tokenManager := security.NewTokenManager(cfg.TokenIssuer, cfg.AuthTokenSecret, cfg.AuthTokenTTL)
	recorder := service.NewActivityRecorder(activity)
	authz := service.NewRoleAuthorizer()

	sessionSvc := service.NewSessionService(sessions, cfg.AuthTokenTTL)
	tokenSvc := service.NewTokenService(tokenManager, sessionSvc, refreshers, users, cfg.TokenPepper, cfg.RefreshTokenTTL)
	authSvc := service.NewAuthService(users, hasher, sessionSvc, tokenSvc, recorder)
	userSvc := service.NewUserService(users, hasher, sessionSvc, tokenSvc, authz, recorder)

	mux := router.New(router.Dependencies{
		Auth:         handler.NewAuthHandler(authSvc, sessionSvc, userSvc, cfg.CookieSecure),
		Admin:        handler.NewAdminHandler(userSvc, authSvc, activity),
		Verifier:     tokenSvc,
		Authorizer:   authz,
		RateLimiter:  backend,
		Presets:      cfg.RateLimitPresets(),
		CookieSecure: cfg.CookieSecure,
		CORSOrigins:  cfg.CORSOrigins,
		// Storefront pricing and quote endpoints are served by a
		// separate deployment today; the mounts here keep their
		// throttling budgets live at this boundary.
		PricingHandler: storefrontPlaceholder("pricing lookup"),
		QuoteHandler:   storefrontPlaceholder("quote submission"),
		Ready: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	a := app.New(cfg, logger, server, runtime, stopBackend)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.AppEnv, "rate_limit_backend", cfg.RateLimitBackend)
		return a.Run(ctx)
	})
	if store, ok := backend.(*ratelimit.StoreBackend); ok {
		g.Go(func() error {
			sweepDurableWindows(ctx, store, cfg.RateLimitSweep, logger)
			return nil
		})
	}
	return g.Wait()
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions, refresh tokens and rate-limit windows, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, _, err := observability.InitLogging(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			now := time.Now()

			nSessions, err := repository.NewSessionRepository(db).DeleteExpired(now)
			if err != nil {
				return fmt.Errorf("sweep sessions: %w", err)
			}
			nTokens, err := repository.NewRefreshTokenRepository(db).DeleteExpired(now)
			if err != nil {
				return fmt.Errorf("sweep refresh tokens: %w", err)
			}
			nWindows, err := repository.NewRateLimitRepository(db).DeleteExpired(now)
			if err != nil {
				return fmt.Errorf("sweep rate-limit windows: %w", err)
			}

			logger.Info("sweep complete",
				"sessions_deleted", nSessions,
				"refresh_tokens_deleted", nTokens,
				"rate_limit_windows_deleted", nWindows,
			)
			return nil
		},
	}
}

// storefrontPlaceholder answers for storefront routes that this
// deployment rate-limits but does not yet serve.
func storefrontPlaceholder(feature string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotImplemented, response.CodeNotFound, feature+" is not served by this deployment", nil)
	})
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	switch cfg.DatabaseDriver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.RefreshToken{},
		&domain.RateLimitWindow{},
		&domain.ActivityLog{},
	)
}

// buildRateLimitBackend selects the configured backend. The memory
// backend returns a stop function that halts its sweeper; the durable
// backends are swept elsewhere (a serve goroutine for the database
// backend, key expiry for Redis).
func buildRateLimitBackend(cfg *config.Config, db *gorm.DB) (ratelimit.Backend, func(), error) {
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendMemory:
		backend := ratelimit.NewMemoryBackend(cfg.RateLimitSweep)
		return backend, backend.Stop, nil
	case config.RateLimitBackendDatabase:
		return ratelimit.NewStoreBackend(repository.NewRateLimitRepository(db)), nil, nil
	case config.RateLimitBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return ratelimit.NewRedisBackend(client, "ratelimit"), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate-limit backend %q", cfg.RateLimitBackend)
	}
}

func sweepDurableWindows(ctx context.Context, backend *ratelimit.StoreBackend, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = ratelimit.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := backend.Sweep(time.Now())
			if err != nil {
				logger.Error("rate-limit window sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("rate-limit windows swept", "deleted", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
