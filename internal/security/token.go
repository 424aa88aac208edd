package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/swiftfix/backoffice/internal/domain"
)

// ErrInvalidToken is the single failure result for token verification.
// Signature mismatch, issuer mismatch, malformed input and expiry all
// collapse into it so callers cannot learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is the payload of the signed session token stored in
// the cookie. SessionID binds the token to a server-side session row;
// a token whose session is gone must not authorize.
type SessionClaims struct {
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	SessionID string      `json:"sid"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject of the claims.
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenManager signs and verifies session tokens with a process-wide
// symmetric secret. The secret is read-only after startup.
type TokenManager struct {
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(issuer, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{issuer: issuer, secret: []byte(secret), ttl: ttl}
}

// TTL is the fixed lifetime of issued session tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Sign issues an HMAC-SHA256 session token for the user, bound to an
// existing session via sessionID.
func (m *TokenManager) Sign(user *domain.User, sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies signature, issuer and expiry. Any failure returns
// ErrInvalidToken.
func (m *TokenManager) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
