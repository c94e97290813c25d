package domain

import "time"

type AuditAction string

const (
	AuditPasswordChanged       AuditAction = "PASSWORD_CHANGED"
	AuditTwoFactorEnabled      AuditAction = "2FA_ENABLED"
	AuditTwoFactorDisabled     AuditAction = "2FA_DISABLED"
	AuditTwoFactorVerifyFailed AuditAction = "2FA_VERIFICATION_FAILED"
	AuditLogoutAllDevices      AuditAction = "LOGOUT_ALL_DEVICES"
	AuditLoginSuccess          AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed           AuditAction = "LOGIN_FAILED"
)

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailed  AuditStatus = "FAILED"
)

// SecurityAuditLog rows are append-only and written best-effort; a failed
// insert never aborts the operation being audited.
type SecurityAuditLog struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"index;not null" json:"user_id"`
	Action      AuditAction `gorm:"size:64;not null" json:"action"`
	IPAddress   string      `gorm:"size:64" json:"ip_address"`
	BrowserInfo string      `gorm:"size:512" json:"browser_info"`
	Status      AuditStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type PasswordChangeLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}
