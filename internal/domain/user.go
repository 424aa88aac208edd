package domain

import "time"

// User is a back-office identity. Email is stored lowercased and is
// unique case-insensitively. Sessions and refresh tokens are owned by
// the user and removed when the user row is deleted.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Email         string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"size:128;not null" json:"-"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Role          Role           `gorm:"size:16;not null;default:EMPLOYEE" json:"role"`
	Active        bool           `gorm:"not null;default:true" json:"active"`
	Phone         *string        `gorm:"size:32" json:"phone,omitempty"`
	EmailVerified bool           `gorm:"not null;default:false" json:"email_verified"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	Sessions      []Session      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RefreshTokens []RefreshToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
