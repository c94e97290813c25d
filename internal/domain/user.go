package domain

import "time"

type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Username           string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email              string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash       string     `gorm:"size:128;not null" json:"-"`
	Avatar             *string    `gorm:"size:255" json:"avatar,omitempty"`
	TwoFactorSecret    *string    `gorm:"size:64" json:"-"`
	TwoFactorEnabled   bool       `gorm:"not null;default:false" json:"two_factor_enabled"`
	TwoFactorEnabledAt *time.Time `json:"-"`
	PasswordChangedAt  *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TwoFactorState reports where the user sits in the enrollment lifecycle.
// A stored secret with the enabled flag still false means enrollment was
// started but the confirmation code has not been accepted yet.
type TwoFactorState string

const (
	TwoFactorDisabled TwoFactorState = "disabled"
	TwoFactorPending  TwoFactorState = "pending"
	TwoFactorEnabled  TwoFactorState = "enabled"
)

func (u *User) TwoFactorState() TwoFactorState {
	switch {
	case u.TwoFactorEnabled && u.TwoFactorSecret != nil:
		return TwoFactorEnabled
	case u.TwoFactorSecret != nil:
		return TwoFactorPending
	default:
		return TwoFactorDisabled
	}
}
