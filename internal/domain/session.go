package domain

import "time"

// Session is one authenticated login instance. Rows are soft-deactivated by
// revocation and never deleted; a row past ExpiresAt counts as inactive even
// when IsActive was never flipped.
type Session struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"index;not null" json:"user_id"`
	Token       string `gorm:"size:512" json:"-"`
	DeviceName  string `gorm:"size:128" json:"device_name"`
	BrowserInfo string `gorm:"size:512" json:"browser_info"`
	IPAddress   string `gorm:"size:64" json:"ip_address"`
	Location    string `gorm:"size:128" json:"location"`
	// No column default: false is the zero value and gorm would omit it
	// on insert, letting a default overwrite an intentionally inactive row.
	IsActive       bool       `gorm:"index;not null" json:"is_active"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	ExpiresAt      time.Time  `gorm:"index;not null" json:"expires_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *Session) Live(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
