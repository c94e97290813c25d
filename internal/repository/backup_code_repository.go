package repository

import (
	"context"
	"errors"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"

	"gorm.io/gorm"
)

var ErrBackupCodeNotFound = errors.New("backup code not found")

type BackupCodeRepository interface {
	ReplaceForUser(userID uint, codeHashes []string) error
	ListUnusedByUserID(userID uint) ([]domain.BackupCode, error)
	MarkUsed(id uint) error
	DeleteByUserID(userID uint) error
}

type GormBackupCodeRepository struct{ db *gorm.DB }

func NewBackupCodeRepository(db *gorm.DB) BackupCodeRepository {
	return &GormBackupCodeRepository{db: db}
}

// ReplaceForUser drops any previous set before inserting the new hashes, so
// a repeated enrollment never leaves stale codes usable.
func (r *GormBackupCodeRepository) ReplaceForUser(userID uint, codeHashes []string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.BackupCode{}).Error; err != nil {
			return err
		}
		rows := make([]domain.BackupCode, 0, len(codeHashes))
		for _, h := range codeHashes {
			rows = append(rows, domain.BackupCode{UserID: userID, CodeHash: h})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "replace_for_user", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "replace_for_user", "success")
	return nil
}

func (r *GormBackupCodeRepository) ListUnusedByUserID(userID uint) ([]domain.BackupCode, error) {
	var codes []domain.BackupCode
	err := r.db.Where("user_id = ? AND used_at IS NULL", userID).Find(&codes).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "list_unused", "error")
		return codes, err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "list_unused", "success")
	return codes, nil
}

func (r *GormBackupCodeRepository) MarkUsed(id uint) error {
	res := r.db.Model(&domain.BackupCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "mark_used", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "mark_used", "not_found")
		return ErrBackupCodeNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "mark_used", "success")
	return nil
}

func (r *GormBackupCodeRepository) DeleteByUserID(userID uint) error {
	err := r.db.Where("user_id = ?", userID).Delete(&domain.BackupCode{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "delete_by_user_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "delete_by_user_id", "success")
	return nil
}
