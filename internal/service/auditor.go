package service

import (
	"log/slog"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/repository"
)

// Auditor persists security audit entries best-effort. A failed write is
// logged and dropped; it never changes the outcome of the operation being
// audited.
type Auditor struct {
	repo   repository.AuditLogRepository
	logger *slog.Logger
}

func NewAuditor(repo repository.AuditLogRepository, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{repo: repo, logger: logger}
}

type AuditEvent struct {
	UserID      uint
	Action      domain.AuditAction
	Status      domain.AuditStatus
	IPAddress   string
	BrowserInfo string
}

func (a *Auditor) Record(ev AuditEvent) {
	entry := &domain.SecurityAuditLog{
		UserID:      ev.UserID,
		Action:      ev.Action,
		Status:      ev.Status,
		IPAddress:   ev.IPAddress,
		BrowserInfo: ev.BrowserInfo,
	}
	if err := a.repo.Append(entry); err != nil {
		a.logger.Warn("audit log write failed",
			"action", string(ev.Action),
			"user_id", ev.UserID,
			"error", err,
		)
	}
}

func (a *Auditor) RecordPasswordChange(userID uint, ip string) {
	if err := a.repo.AppendPasswordChange(&domain.PasswordChangeLog{UserID: userID, IPAddress: ip}); err != nil {
		a.logger.Warn("password change log write failed", "user_id", userID, "error", err)
	}
}
