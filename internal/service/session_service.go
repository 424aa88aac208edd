package service

import (
	"time"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/security"
)

// SessionService owns the session lifecycle: creation with the
// per-user retention cap, lazy expiry on lookup, and revocation by
// deletion.
type SessionService struct {
	sessions   repository.SessionRepository
	ttl        time.Duration
	maxPerUser int
}

func NewSessionService(sessions repository.SessionRepository, ttl time.Duration) *SessionService {
	return &SessionService{
		sessions:   sessions,
		ttl:        ttl,
		maxPerUser: domain.MaxSessionsPerUser,
	}
}

// Create inserts a new session for the user. The retention cap is
// enforced before insertion: the newest maxPerUser-1 sessions are kept,
// anything older is deleted, then the new session goes in as the
// maxPerUser-th. Evicting the oldest device silently is expected
// behavior, not an error. Deleting stale rows before inserting means a
// failure mid-sequence can only under-populate, never leave the
// just-created session unreachable.
func (s *SessionService) Create(user *domain.User, ip, userAgent string) (*domain.Session, error) {
	existing, err := s.sessions.ListByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= s.maxPerUser {
		stale := make([]uint, 0, len(existing)-s.maxPerUser+1)
		for _, old := range existing[s.maxPerUser-1:] {
			stale = append(stale, old.ID)
		}
		if _, err := s.sessions.DeleteByIDs(stale); err != nil {
			return nil, err
		}
	}

	session := &domain.Session{
		UserID:    user.ID,
		TokenID:   security.NewOpaqueToken(),
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetByTokenID resolves a live session. An expired row is deleted on
// touch and reported as missing, so callers treat it identically to a
// session that never existed.
func (s *SessionService) GetByTokenID(tokenID string) (*domain.Session, error) {
	session, err := s.sessions.FindByTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_, _ = s.sessions.DeleteByTokenID(tokenID)
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

// Revoke deletes one session. Revoking a session that is already gone
// is not an error; logout is idempotent.
func (s *SessionService) Revoke(tokenID string) error {
	_, err := s.sessions.DeleteByTokenID(tokenID)
	return err
}

// RevokeAllForUser signs the user out everywhere. Password changes
// and resets call this to invalidate every open browser.
func (s *SessionService) RevokeAllForUser(userID uint) (int64, error) {
	return s.sessions.DeleteByUserID(userID)
}

// RevokeByIDForUser deletes one of the user's own sessions by row id.
// It reports whether a session was actually removed; asking to revoke a
// session that is gone or not owned is not an error.
func (s *SessionService) RevokeByIDForUser(userID, sessionID uint) (bool, error) {
	sessions, err := s.sessions.ListByUserID(userID)
	if err != nil {
		return false, err
	}
	for _, session := range sessions {
		if session.ID == sessionID {
			n, err := s.sessions.DeleteByIDs([]uint{session.ID})
			return n > 0, err
		}
	}
	return false, nil
}

// List returns the user's sessions newest first.
func (s *SessionService) List(userID uint) ([]domain.Session, error) {
	return s.sessions.ListByUserID(userID)
}

// CleanupExpired removes sessions past their absolute expiry.
func (s *SessionService) CleanupExpired() (int64, error) {
	return s.sessions.DeleteExpired(time.Now())
}
