package domain

import "time"

// Session is one authenticated browser context. TokenID is the opaque
// session identifier carried inside the signed cookie token; deleting
// the row invalidates every token that references it, regardless of the
// token's own signature validity. At most MaxSessionsPerUser rows are
// retained per user; creating one more evicts the oldest.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenID   string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	IP        string    `gorm:"size:64" json:"ip"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxSessionsPerUser bounds concurrent sessions per user. The cap is
// enforced before insertion, so the active count never exceeds it.
const MaxSessionsPerUser = 5

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
