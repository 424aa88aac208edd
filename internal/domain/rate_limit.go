package domain

// RateLimitWindow is one fixed-window counter row in the durable
// rate-limit backend, keyed by client identity plus endpoint scope.
// ResetTime is epoch milliseconds; a row whose reset time has passed is
// treated as expired and is reset on the next request or swept by the
// periodic cleanup.
type RateLimitWindow struct {
	Key       string `gorm:"primaryKey;size:255" json:"key"`
	Count     int    `gorm:"not null" json:"count"`
	ResetTime int64  `gorm:"not null" json:"reset_time"`
}
