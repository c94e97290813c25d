package repository

import (
	"context"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"

	"gorm.io/gorm"
)

type AuditLogRepository interface {
	Append(entry *domain.SecurityAuditLog) error
	AppendPasswordChange(entry *domain.PasswordChangeLog) error
	ListByUserID(userID uint, limit int) ([]domain.SecurityAuditLog, error)
}

type GormAuditLogRepository struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) Append(entry *domain.SecurityAuditLog) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit_log", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit_log", "append", "success")
	return nil
}

func (r *GormAuditLogRepository) AppendPasswordChange(entry *domain.PasswordChangeLog) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_change_log", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_change_log", "append", "success")
	return nil
}

func (r *GormAuditLogRepository) ListByUserID(userID uint, limit int) ([]domain.SecurityAuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []domain.SecurityAuditLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit_log", "list_by_user_id", "error")
		return entries, err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit_log", "list_by_user_id", "success")
	return entries, nil
}
