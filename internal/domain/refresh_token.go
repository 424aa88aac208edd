package domain

import "time"

// RefreshToken is the stored side of an opaque refresh credential.
// Only a peppered hash of the token is persisted; validity is decided
// by store lookup, never by parsing the token itself. Refresh tokens
// mint new signed session tokens and never authorize requests directly.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the refresh token may no longer be exchanged.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
