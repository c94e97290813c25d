package domain

import "time"

// BackupCode is a single-use recovery credential. Only the bcrypt hash is
// stored; the plaintext is shown to the user exactly once at enrollment.
type BackupCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	CodeHash  string     `gorm:"size:128;not null" json:"-"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (BackupCode) TableName() string { return "two_factor_backup_codes" }
