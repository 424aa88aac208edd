package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/swiftfix/backoffice/internal/ratelimit"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Rate-limit backend modes. One backend is selected at startup; the
// public contract is identical either way.
const (
	RateLimitBackendMemory   = "memory"
	RateLimitBackendDatabase = "database"
	RateLimitBackendRedis    = "redis"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseDriver string // postgres or sqlite
	DatabaseDSN    string

	RateLimitBackend string
	RedisAddr        string
	RateLimitSweep   time.Duration

	AuthTokenSecret string
	AuthTokenTTL    time.Duration
	RefreshTokenTTL time.Duration
	TokenIssuer     string
	TokenPepper     string
	BcryptCost      int

	CookieSecure bool
	CORSOrigins  []string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

// Load builds the configuration from the environment. A missing signing
// secret in the production profile is a fatal error: the process must
// refuse to start rather than fall back to a known default.
func Load() (*Config, error) {
	cfg, err := load()
	recordConfigValidationEvent(context.Background(), envString("APP_ENV", EnvDevelopment), loadOutcome(err), classifyConfigLoadError(err))
	return cfg, err
}

func load() (*Config, error) {
	cfg := &Config{
		AppEnv:                    envString("APP_ENV", EnvDevelopment),
		HTTPAddr:                  envString("HTTP_ADDR", ":8080"),
		DatabaseDriver:            envString("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:               envString("DATABASE_DSN", "backoffice.db"),
		RateLimitBackend:          envString("RATE_LIMIT_BACKEND", RateLimitBackendMemory),
		RedisAddr:                 envString("REDIS_ADDR", ""),
		AuthTokenSecret:           envString("AUTH_TOKEN_SECRET", ""),
		TokenIssuer:               envString("AUTH_TOKEN_ISSUER", "swiftfix-backoffice"),
		TokenPepper:               envString("AUTH_TOKEN_PEPPER", ""),
		OTELServiceName:           envString("OTEL_SERVICE_NAME", "swiftfix-backoffice"),
		OTELEnvironment:           envString("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        envBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:         envBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:           envBool("OTEL_LOGS_ENABLED", false),
		CORSOrigins:               envList("CORS_ORIGINS", nil),
	}

	var err error
	if cfg.AuthTokenTTL, err = envDuration("AUTH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitSweep, err = envDuration("RATE_LIMIT_SWEEP_INTERVAL", ratelimit.DefaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = envInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.AppEnv == EnvProduction)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("validate config: unknown APP_ENV %q", c.AppEnv)
	}

	if c.AuthTokenSecret == "" {
		if c.AppEnv == EnvProduction {
			return fmt.Errorf("validate config: AUTH_TOKEN_SECRET is required in production")
		}
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate development secret: %w", err)
		}
		c.AuthTokenSecret = secret
		slog.Warn("AUTH_TOKEN_SECRET not set, using an ephemeral development secret; sessions will not survive a restart")
	}
	if len(c.AuthTokenSecret) < 32 {
		return fmt.Errorf("validate config: AUTH_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.TokenPepper == "" {
		c.TokenPepper = c.AuthTokenSecret
	}

	switch c.RateLimitBackend {
	case RateLimitBackendMemory, RateLimitBackendDatabase:
	case RateLimitBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("validate config: REDIS_ADDR is required for the redis rate-limit backend")
		}
	default:
		return fmt.Errorf("validate config: unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("validate config: unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

// Rate-limit preset names. The set of presets is a configuration table,
// not logic hidden at call sites.
const (
	PresetAPI     = "api"
	PresetAuth    = "auth"
	PresetQuote   = "quote"
	PresetPricing = "pricing"
)

// RateLimitPresets names the fixed-window budgets per endpoint group.
// Credential-adjacent endpoints get the strict windows.
func (c *Config) RateLimitPresets() map[string]ratelimit.Config {
	return map[string]ratelimit.Config{
		PresetAPI:     {Window: time.Minute, MaxRequests: 100},
		PresetAuth:    {Window: 15 * time.Minute, MaxRequests: 5},
		PresetQuote:   {Window: time.Hour, MaxRequests: 10},
		PresetPricing: {Window: time.Minute, MaxRequests: 30},
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func loadOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
