package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/observability"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
)

// ErrInvalidCredentials is returned for an unknown email, a wrong
// password and an inactive account alike, so responses carry no
// user-enumeration signal.
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash is compared against when the email is unknown, so the
// request costs a bcrypt verification either way.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// LoginResult is everything a transport needs after authentication.
type LoginResult struct {
	User         *domain.User
	Session      *domain.Session
	SessionToken string
	RefreshToken string
}

// AuthService implements login, logout and password lifecycle on top of
// the session and token services.
type AuthService struct {
	users    repository.UserRepository
	hasher   *security.PasswordHasher
	sessions *SessionService
	tokens   *TokenService
	recorder ActivityRecorder
}

func NewAuthService(
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	sessions *SessionService,
	tokens *TokenService,
	recorder ActivityRecorder,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		tokens:   tokens,
		recorder: recorder,
	}
}

// Login verifies credentials, persists a session and only then issues
// the signed token bound to it. Both the success and the failure path
// append to the activity trail.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(password, dummyHash)
			s.recordLoginFailure(ctx, nil, email, ip, userAgent)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) || !user.Active {
		s.recordLoginFailure(ctx, &user.ID, email, ip, userAgent)
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(user.ID, time.Now()); err != nil {
		return nil, err
	}
	session, err := s.sessions.Create(user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	sessionToken, err := s.tokens.IssueSessionToken(user, session)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	observability.RecordAuthLogin("success")
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      domain.ActionLogin,
		Description: fmt.Sprintf("%s signed in", user.Email),
		IP:          ip,
		UserAgent:   userAgent,
	})
	return &LoginResult{
		User:         user,
		Session:      session,
		SessionToken: sessionToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout revokes the current session and every refresh token the user
// holds. Calling it for a session that is already gone still succeeds.
func (s *AuthService) Logout(ctx context.Context, userID uint, sessionTokenID, ip, userAgent string) error {
	if err := s.sessions.Revoke(sessionTokenID); err != nil {
		return err
	}
	if err := s.tokens.RevokeRefreshTokens(userID); err != nil {
		return err
	}
	observability.RecordAuthLogout("success")
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &userID,
		Action:      domain.ActionLogout,
		Description: "signed out",
		IP:          ip,
		UserAgent:   userAgent,
	})
	return nil
}

// Refresh exchanges an opaque refresh token for a new signed session
// token. The refresh token is reused until logout, not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (string, *domain.User, error) {
	signed, user, err := s.tokens.Refresh(refreshToken, ip, userAgent)
	if err != nil {
		observability.RecordAuthRefresh("failure")
		return "", nil, err
	}
	observability.RecordAuthRefresh("success")
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      domain.ActionTokenRefreshed,
		Description: "session token refreshed",
		IP:          ip,
		UserAgent:   userAgent,
	})
	return signed, user, nil
}

// ChangePassword verifies the current password before storing the new
// hash, then signs the user out everywhere: every session and refresh
// token is revoked, including the one driving this request.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next, ip, userAgent string) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		s.recorder.Record(ctx, ActivityEntry{
			UserID:      &user.ID,
			Action:      domain.ActionPasswordChanged,
			Description: "password change rejected: current password mismatch",
			IP:          ip,
			UserAgent:   userAgent,
		})
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}
	if err := s.revokeEverything(user.ID); err != nil {
		return err
	}
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      domain.ActionPasswordChanged,
		Description: "password changed, all sessions revoked",
		IP:          ip,
		UserAgent:   userAgent,
	})
	return nil
}

// ResetPassword sets a new password without knowing the old one (an
// administrative reset). All sessions and refresh tokens are revoked so
// a cookie in any other browser stops authorizing immediately.
func (s *AuthService) ResetPassword(ctx context.Context, userID uint, next, ip, userAgent string) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}
	if err := s.revokeEverything(user.ID); err != nil {
		return err
	}
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      &user.ID,
		Action:      domain.ActionPasswordReset,
		Description: fmt.Sprintf("password reset for %s, all sessions revoked", user.Email),
		IP:          ip,
		UserAgent:   userAgent,
	})
	return nil
}

// SessionTokenTTL is the cookie max-age for issued session tokens.
func (s *AuthService) SessionTokenTTL() time.Duration {
	return s.tokens.SessionTokenTTL()
}

func (s *AuthService) revokeEverything(userID uint) error {
	if _, err := s.sessions.RevokeAllForUser(userID); err != nil {
		return err
	}
	return s.tokens.RevokeRefreshTokens(userID)
}

func (s *AuthService) recordLoginFailure(ctx context.Context, userID *uint, email, ip, userAgent string) {
	observability.RecordAuthLogin("failure")
	s.recorder.Record(ctx, ActivityEntry{
		UserID:      userID,
		Action:      domain.ActionLoginFailed,
		Description: fmt.Sprintf("failed sign-in for %s", email),
		IP:          ip,
		UserAgent:   userAgent,
	})
}
