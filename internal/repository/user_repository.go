package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already taken")
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Create(user *domain.User) error
	UpdatePassword(userID uint, passwordHash string) error
	SetTwoFactorSecret(userID uint, secret string) error
	EnableTwoFactor(userID uint) error
	DisableTwoFactor(userID uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "success")
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "conflict")
			return ErrDuplicateUser
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) UpdatePassword(userID uint, passwordHash string) error {
	now := time.Now().UTC()
	res := r.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"password_hash": passwordHash, "password_changed_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "success")
	return nil
}

func (r *GormUserRepository) SetTwoFactorSecret(userID uint, secret string) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"two_factor_secret": secret, "two_factor_enabled": false})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_twofactor_secret", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_twofactor_secret", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "set_twofactor_secret", "success")
	return nil
}

func (r *GormUserRepository) EnableTwoFactor(userID uint) error {
	now := time.Now().UTC()
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND two_factor_secret IS NOT NULL", userID).
		Updates(map[string]any{"two_factor_enabled": true, "two_factor_enabled_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "enable_twofactor", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "enable_twofactor", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "enable_twofactor", "success")
	return nil
}

func (r *GormUserRepository) DisableTwoFactor(userID uint) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"two_factor_enabled":    false,
			"two_factor_secret":     nil,
			"two_factor_enabled_at": nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "disable_twofactor", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "disable_twofactor", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "disable_twofactor", "success")
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
