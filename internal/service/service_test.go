package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse battery staple"
)

type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	refreshers repository.RefreshTokenRepository
	activity   repository.ActivityRepository
	hasher     *security.PasswordHasher

	sessions *SessionService
	tokens   *TokenService
	auth     *AuthService
	userSvc  *UserService
}

func newTestEnv(t *testing.T) *testEnv {
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
		&domain.User{},
		&domain.Session{},
		&domain.RefreshToken{},
		&domain.ActivityLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	refreshers := repository.NewRefreshTokenRepository(db)
	activity := repository.NewActivityRepository(db)

	hasher := security.NewPasswordHasher(security.MinPasswordCost)
	tokenManager := security.NewTokenManager("backoffice-test", testSecret, time.Hour)
	recorder := NewActivityRecorder(activity)

	sessions := NewSessionService(sessionRepo, time.Hour)
	tokens := NewTokenService(tokenManager, sessions, refreshers, users, "test-pepper", 24*time.Hour)
	auth := NewAuthService(users, hasher, sessions, tokens, recorder)
	userSvc := NewUserService(users, hasher, sessions, tokens, NewRoleAuthorizer(), recorder)

	return &testEnv{
		db:         db,
		users:      users,
		refreshers: refreshers,
		activity:   activity,
		hasher:     hasher,
		sessions:   sessions,
		tokens:     tokens,
		auth:       auth,
		userSvc:    userSvc,
	}
}

func (e *testEnv) createUser(t *testing.T, email string, role domain.Role, active bool) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test Staffer",
		Role:         role,
		Active:       active,
	}
	if err := e.users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func claimsFor(user *domain.User) *security.SessionClaims {
	return &security.SessionClaims{
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		SessionID: "test-session",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: fmt.Sprintf("%d", user.ID),
		},
	}
}

func (e *testEnv) lastActivity(t *testing.T) *domain.ActivityLog {
	t.Helper()
	entries, err := e.activity.ListRecent(1)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) == 0 {
		return nil
	}
	return &entries[0]
}
