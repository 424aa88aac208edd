package service

import (
	"errors"
	"time"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
)

var (
	// ErrInvalidToken covers every verification failure: bad
	// signature, expiry, orphaned session, unknown refresh token.
	// Callers learn nothing about which check failed.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService issues and verifies both token kinds: the signed session
// token carried in the cookie and the opaque refresh token used by API
// clients to mint new signed tokens without re-authenticating.
type TokenService struct {
	tokens     *security.TokenManager
	sessions   *SessionService
	refreshers repository.RefreshTokenRepository
	users      repository.UserRepository
	pepper     string
	refreshTTL time.Duration
}

func NewTokenService(
	tokens *security.TokenManager,
	sessions *SessionService,
	refreshers repository.RefreshTokenRepository,
	users repository.UserRepository,
	pepper string,
	refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		tokens:     tokens,
		sessions:   sessions,
		refreshers: refreshers,
		users:      users,
		pepper:     pepper,
		refreshTTL: refreshTTL,
	}
}

// IssueSessionToken signs a token bound to an existing session. The
// session row must already be persisted: a verified token whose session
// has since been deleted is detectable and rejected.
func (s *TokenService) IssueSessionToken(user *domain.User, session *domain.Session) (string, error) {
	return s.tokens.Sign(user, session.TokenID)
}

// VerifySession checks signature, issuer and expiry, then re-validates
// the claims against the session store. A token whose session was
// revoked or expired does not authorize even though its signature is
// still cryptographically valid.
func (s *TokenService) VerifySession(raw string) (*security.SessionClaims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	session, err := s.sessions.GetByTokenID(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if session.UserID != userID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueRefreshToken mints an opaque refresh token for the user. Only a
// peppered hash is stored.
func (s *TokenService) IssueRefreshToken(user *domain.User) (string, error) {
	raw := security.NewOpaqueToken()
	token := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: security.HashOpaqueToken(raw, s.pepper),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.refreshers.Create(token); err != nil {
		return "", err
	}
	return raw, nil
}

// Refresh exchanges a valid refresh token for a new signed session
// token backed by a fresh session row. The refresh token itself is not
// rotated; it stays valid until logout or expiry. An expired token is
// deleted on touch and reported invalid.
func (s *TokenService) Refresh(raw, ip, userAgent string) (string, *domain.User, error) {
	hash := security.HashOpaqueToken(raw, s.pepper)
	token, err := s.refreshers.FindByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return "", nil, ErrInvalidToken
		}
		return "", nil, err
	}
	if token.Expired(time.Now()) {
		_, _ = s.refreshers.DeleteByHash(hash)
		return "", nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidToken
		}
		return "", nil, err
	}
	if !user.Active {
		return "", nil, ErrInvalidToken
	}

	session, err := s.sessions.Create(user, ip, userAgent)
	if err != nil {
		return "", nil, err
	}
	signed, err := s.IssueSessionToken(user, session)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

// RevokeRefreshTokens removes every refresh token owned by the user.
func (s *TokenService) RevokeRefreshTokens(userID uint) error {
	_, err := s.refreshers.DeleteByUserID(userID)
	return err
}

// CleanupExpired removes refresh tokens past their expiry.
func (s *TokenService) CleanupExpired() (int64, error) {
	return s.refreshers.DeleteExpired(time.Now())
}

// SessionTokenTTL is the lifetime of issued signed tokens, which is
// also the session cookie max-age.
func (s *TokenService) SessionTokenTTL() time.Duration {
	return s.tokens.TTL()
}
