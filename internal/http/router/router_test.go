package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/swiftfix/backoffice/internal/config"
	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/handler"
	"github.com/swiftfix/backoffice/internal/ratelimit"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
	"github.com/swiftfix/backoffice/internal/service"
)

const testPassword = "correct horse battery staple"

type routerEnv struct {
	server *httptest.Server
	client *http.Client
	users  repository.UserRepository
	hasher *security.PasswordHasher
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Session{}, &domain.RefreshToken{}, &domain.ActivityLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	refreshers := repository.NewRefreshTokenRepository(db)
	activity := repository.NewActivityRepository(db)

	hasher := security.NewPasswordHasher(security.MinPasswordCost)
	tokenManager := security.NewTokenManager("backoffice-test", "0123456789abcdef0123456789abcdef", time.Hour)
	recorder := service.NewActivityRecorder(activity)
	authz := service.NewRoleAuthorizer()

	sessionSvc := service.NewSessionService(sessions, time.Hour)
	tokenSvc := service.NewTokenService(tokenManager, sessionSvc, refreshers, users, "pepper", 24*time.Hour)
	authSvc := service.NewAuthService(users, hasher, sessionSvc, tokenSvc, recorder)
	userSvc := service.NewUserService(users, hasher, sessionSvc, tokenSvc, authz, recorder)

	backend := ratelimit.NewMemoryBackend(time.Hour)
	t.Cleanup(backend.Stop)

	pricing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"tiers":[]}`))
	})

	mux := New(Dependencies{
		Auth:           handler.NewAuthHandler(authSvc, sessionSvc, userSvc, false),
		Admin:          handler.NewAdminHandler(userSvc, authSvc, activity),
		Verifier:       tokenSvc,
		Authorizer:     authz,
		RateLimiter:    backend,
		Presets:        (&config.Config{}).RateLimitPresets(),
		PricingHandler: pricing,
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &routerEnv{
		server: server,
		client: server.Client(),
		users:  users,
		hasher: hasher,
	}
}

func (e *routerEnv) seedUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{Email: email, PasswordHash: hash, Name: "Router Test", Role: role, Active: true}
	if err := e.users.Create(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// login authenticates and returns the session cookie value. Each call
// uses its own client identity so tests do not eat each other's strict
// login budget.
func (e *routerEnv) login(t *testing.T, email, clientIP string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": testPassword})
	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", clientIP)
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == security.SessionCookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie in login response")
	return ""
}

func (e *routerEnv) get(t *testing.T, path, sessionToken, clientIP string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: sessionToken})
	}
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestPricingRateLimitScenario(t *testing.T) {
	env := newRouterEnv(t)

	var resp *http.Response
	for i := 1; i <= 30; i++ {
		resp = env.get(t, "/api/v1/pricing", "", "198.51.100.77")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, resp.StatusCode)
		}
		remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
		if err != nil || remaining != 30-i {
			t.Fatalf("request %d remaining = %q, want %d", i, resp.Header.Get("X-RateLimit-Remaining"), 30-i)
		}
		resp.Body.Close()
	}

	resp = env.get(t, "/api/v1/pricing", "", "198.51.100.77")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("31st request status = %d, want 429", resp.StatusCode)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("Retry-After = %q, want 1..60 seconds", resp.Header.Get("Retry-After"))
	}
	resetMs, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || time.UnixMilli(resetMs).Before(time.Now()) {
		t.Fatalf("X-RateLimit-Reset = %q, want a future epoch-millisecond instant", resp.Header.Get("X-RateLimit-Reset"))
	}
	if code := errorCode(t, resp); code != "RATE_LIMITED" {
		t.Fatalf("code = %q, want RATE_LIMITED", code)
	}

	// A different client identity still has its full budget.
	resp = env.get(t, "/api/v1/pricing", "", "198.51.100.78")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedVersusForbidden(t *testing.T) {
	env := newRouterEnv(t)
	env.seedUser(t, "employee@example.com", domain.RoleEmployee)
	env.seedUser(t, "manager@example.com", domain.RoleManager)

	// No identity at all: 401.
	resp := env.get(t, "/api/v1/users/", "", "203.0.113.1")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "UNAUTHORIZED" {
		t.Fatalf("code = %q, want UNAUTHORIZED", code)
	}

	// Authenticated but outranked: 403.
	empToken := env.login(t, "employee@example.com", "203.0.113.2")
	resp = env.get(t, "/api/v1/users/", empToken, "203.0.113.2")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("employee status = %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "FORBIDDEN" {
		t.Fatalf("code = %q, want FORBIDDEN", code)
	}

	// Sufficient role: 200.
	mgrToken := env.login(t, "manager@example.com", "203.0.113.3")
	resp = env.get(t, "/api/v1/users/", mgrToken, "203.0.113.3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manager status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Manager is still not admin: activity is out of reach.
	resp = env.get(t, "/api/v1/admin/activity", mgrToken, "203.0.113.3")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("manager activity status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthLoginRateLimit(t *testing.T) {
	env := newRouterEnv(t)

	// Five failed attempts consume the strict budget; the sixth is
	// rejected before credentials are even checked.
	body, _ := json.Marshal(map[string]string{"email": "ghost@example.com", "password": "wrong"})
	for i := 1; i <= 5; i++ {
		req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", "192.0.2.50")
		resp, err := env.client.Do(req)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", "192.0.2.50")
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("6th attempt: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("6th attempt status = %d, want 429", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newRouterEnv(t)

	for _, path := range []string{"/healthz/live", "/healthz/ready"} {
		resp := env.get(t, path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
