package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/swiftfix/backoffice/internal/config"
	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/handler"
	"github.com/swiftfix/backoffice/internal/http/router"
	"github.com/swiftfix/backoffice/internal/ratelimit"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
	"github.com/swiftfix/backoffice/internal/service"
)

const testPassword = "correct horse battery staple"

type env struct {
	server *httptest.Server
	client *http.Client
	users  repository.UserRepository
	hasher *security.PasswordHasher
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newEnv(t *testing.T) *env {
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

	mux := router.New(router.Dependencies{
		Auth:        handler.NewAuthHandler(authSvc, sessionSvc, userSvc, false),
		Admin:       handler.NewAdminHandler(userSvc, authSvc, activity),
		Verifier:    tokenSvc,
		Authorizer:  authz,
		RateLimiter: backend,
		Presets:     (&config.Config{}).RateLimitPresets(),
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &env{server: server, client: server.Client(), users: users, hasher: hasher}
}

func (e *env) seedUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{Email: email, PasswordHash: hash, Name: "Integration Staffer", Role: role, Active: true}
	if err := e.users.Create(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// doJSON issues a request with an optional session cookie. The clientIP
// keeps rate-limit identities separate between logical actors.
func (e *env) doJSON(t *testing.T, method, path string, payload any, sessionToken, clientIP string) (*http.Response, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: sessionToken})
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out envelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, out
}

func (e *env) login(t *testing.T, email, clientIP string) (sessionToken, refreshToken string) {
	t.Helper()
	resp, out := e.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	}, "", clientIP)
	if resp.StatusCode != http.StatusOK || !out.Success {
		t.Fatalf("login status = %d, success = %v", resp.StatusCode, out.Success)
	}
	var data struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	for _, c := range resp.Cookies() {
		if c.Name == security.SessionCookieName {
			return c.Value, data.RefreshToken
		}
	}
	t.Fatal("no session cookie in login response")
	return "", ""
}
