package domain

import "time"

// Activity log action tags for security-relevant events.
const (
	ActionLogin           = "LOGIN"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionLogout          = "LOGOUT"
	ActionTokenRefreshed  = "TOKEN_REFRESHED"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionPasswordReset   = "PASSWORD_RESET"
	ActionUserCreated     = "USER_CREATED"
	ActionUserUpdated     = "USER_UPDATED"
	ActionUserDeactivated = "USER_DEACTIVATED"
)

// ActivityLog is an append-only audit record. Entries are never mutated
// or deleted by this subsystem. UserID is nil for events that happen
// before an identity is established, such as failed logins.
type ActivityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	Action      string    `gorm:"size:64;index;not null" json:"action"`
	Description string    `gorm:"size:512" json:"description"`
	IP          string    `gorm:"size:64" json:"ip,omitempty"`
	UserAgent   string    `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
