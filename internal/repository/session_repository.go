package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(s *domain.Session) error
	FindByIDForUser(userID, sessionID uint) (*domain.Session, error)
	ListActiveByUserID(userID uint) ([]domain.Session, error)
	StoreToken(sessionID uint, token string) error
	DeactivateByIDForUser(userID, sessionID uint) (bool, error)
	DeactivateOthersByUser(userID, keepSessionID uint) (int64, error)
	TouchActivity(sessionID uint) error
	CleanupExpired() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = time.Now().UTC()
	}
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

// FindByIDForUser resolves a session by id scoped to its owner. It does not
// filter on is_active, so deactivating an already-inactive session still
// resolves the row (revocation stays idempotent).
func (r *GormSessionRepository) FindByIDForUser(userID, sessionID uint) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("user_id = ? AND id = ?", userID, sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_user", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_user", "success")
	return &s, nil
}

// ListActiveByUserID returns live sessions only: the active flag must be set
// and expiry filtered at query time, so a row whose flag was never flipped
// still disappears once past expires_at.
func (r *GormSessionRepository) ListActiveByUserID(userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "success")
	return sessions, nil
}

// StoreToken records the issued bearer token on its session row. Purely
// for traceability; authentication verifies the signed token itself.
func (r *GormSessionRepository) StoreToken(sessionID uint, token string) error {
	err := r.db.Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Update("token", token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "store_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "store_token", "success")
	return nil
}

func (r *GormSessionRepository) DeactivateByIDForUser(userID, sessionID uint) (bool, error) {
	session, err := r.FindByIDForUser(userID, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_by_id_for_user", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_by_id_for_user", "error")
		}
		return false, err
	}
	now := time.Now().UTC()
	res := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND id = ?", userID, session.ID).
		Updates(map[string]any{"is_active": false, "deactivated_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_by_id_for_user", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_by_id_for_user", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeactivateOthersByUser(userID, keepSessionID uint) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND id <> ? AND is_active = ?", userID, keepSessionID, true).
		Updates(map[string]any{"is_active": false, "deactivated_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_others_by_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate_others_by_user", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) TouchActivity(sessionID uint) error {
	err := r.db.Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Update("last_activity_at", time.Now().UTC()).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "success")
	return nil
}

func (r *GormSessionRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
