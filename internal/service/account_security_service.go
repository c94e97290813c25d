package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/security"
)

// RequestMeta carries the best-effort client description threaded into
// audit rows.
type RequestMeta struct {
	IPAddress   string
	BrowserInfo string
}

type TwoFactorSetup struct {
	Secret        string
	QRCodeDataURI string
}

type SecurityInfo struct {
	TwoFactorEnabled bool
	Sessions         []SessionView
}

// AccountSecurityService owns the password and two-factor lifecycle. Every
// mutation of users, backup codes and audit rows funnels through here.
type AccountSecurityService struct {
	users       repository.UserRepository
	backupCodes repository.BackupCodeRepository
	sessions    *SessionService
	hasher      *security.PasswordHasher
	totp        *security.TOTPProvisioner
	guard       TwoFactorGuard
	auditor     *Auditor
	logger      *slog.Logger
}

func NewAccountSecurityService(
	users repository.UserRepository,
	backupCodes repository.BackupCodeRepository,
	sessions *SessionService,
	hasher *security.PasswordHasher,
	totp *security.TOTPProvisioner,
	guard TwoFactorGuard,
	auditor *Auditor,
	logger *slog.Logger,
) *AccountSecurityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountSecurityService{
		users:       users,
		backupCodes: backupCodes,
		sessions:    sessions,
		hasher:      hasher,
		totp:        totp,
		guard:       guard,
		auditor:     auditor,
		logger:      logger,
	}
}

// ChangePassword validates in a fixed order: policy, user exists, current
// password verifies, new password differs. Only then does it write, and the
// two log appends afterwards are best-effort.
func (s *AccountSecurityService) ChangePassword(userID uint, currentPassword, newPassword string, meta RequestMeta) error {
	if err := security.ValidatePasswordPolicy(newPassword); err != nil {
		observability.RecordPasswordChange("weak_password")
		return fmt.Errorf("%w: %s", ErrWeakPassword, err)
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		observability.RecordPasswordChange("user_not_found")
		return err
	}

	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			observability.RecordPasswordChange("wrong_password")
			return ErrWrongPassword
		}
		return fmt.Errorf("verify current password: %w", err)
	}

	// Reject no-op changes.
	if err := s.hasher.Verify(user.PasswordHash, newPassword); err == nil {
		observability.RecordPasswordChange("same_password")
		return ErrSamePassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.users.UpdatePassword(userID, hash); err != nil {
		observability.RecordPasswordChange("store_error")
		return err
	}

	observability.RecordPasswordChange("success")
	s.auditor.RecordPasswordChange(userID, meta.IPAddress)
	s.auditor.Record(AuditEvent{
		UserID:      userID,
		Action:      domain.AuditPasswordChanged,
		Status:      domain.AuditSuccess,
		IPAddress:   meta.IPAddress,
		BrowserInfo: meta.BrowserInfo,
	})
	return nil
}

// GenerateTwoFactor starts enrollment. The fresh secret is stored right
// away, enabled stays false: the user is in the pending state until a code
// is verified. A repeat call overwrites a pending secret; an enabled
// account must go through the password-protected disable flow first.
func (s *AccountSecurityService) GenerateTwoFactor(userID uint) (*TwoFactorSetup, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		observability.RecordTwoFactorEvent("generate", "already_enabled")
		return nil, ErrTwoFactorEnabled
	}

	setup, err := s.totp.Generate(user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetTwoFactorSecret(userID, setup.Secret); err != nil {
		return nil, err
	}

	observability.RecordTwoFactorEvent("generate", "success")
	return &TwoFactorSetup{Secret: setup.Secret, QRCodeDataURI: setup.QRCodeDataURI}, nil
}

// VerifyTwoFactor completes enrollment: the code must match the pending
// secret within the drift window. Success flips the enabled flag and mints
// ten backup codes; a backup-code persistence failure does not roll back
// the enabled state.
func (s *AccountSecurityService) VerifyTwoFactor(ctx context.Context, userID uint, code string, meta RequestMeta) ([]string, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotSetup
	}

	if err := s.guard.Check(ctx, userID); err != nil {
		return nil, err
	}

	if !s.totp.Validate(code, *user.TwoFactorSecret, time.Now()) {
		s.guard.RecordFailure(ctx, userID)
		observability.RecordTwoFactorEvent("verify", "invalid_code")
		s.auditor.Record(AuditEvent{
			UserID:      userID,
			Action:      domain.AuditTwoFactorVerifyFailed,
			Status:      domain.AuditFailed,
			IPAddress:   meta.IPAddress,
			BrowserInfo: meta.BrowserInfo,
		})
		return nil, ErrInvalidTwoFactorCode
	}

	if err := s.users.EnableTwoFactor(userID); err != nil {
		return nil, err
	}
	s.guard.Reset(ctx, userID)
	observability.RecordTwoFactorEvent("verify", "success")
	s.auditor.Record(AuditEvent{
		UserID:      userID,
		Action:      domain.AuditTwoFactorEnabled,
		Status:      domain.AuditSuccess,
		IPAddress:   meta.IPAddress,
		BrowserInfo: meta.BrowserInfo,
	})

	codes, err := security.GenerateBackupCodes()
	if err != nil {
		s.logger.Warn("backup code generation failed after 2FA enable", "user_id", userID, "error", err)
		return []string{}, nil
	}
	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := s.hasher.Hash(c)
		if err != nil {
			s.logger.Warn("backup code hashing failed after 2FA enable", "user_id", userID, "error", err)
			return []string{}, nil
		}
		hashes = append(hashes, h)
	}
	if err := s.backupCodes.ReplaceForUser(userID, hashes); err != nil {
		s.logger.Warn("backup code persistence failed after 2FA enable", "user_id", userID, "error", err)
		return []string{}, nil
	}
	return codes, nil
}

// DisableTwoFactor requires the account password, then clears the secret
// and flag and drops the backup codes best-effort.
func (s *AccountSecurityService) DisableTwoFactor(userID uint, currentPassword string, meta RequestMeta) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			observability.RecordTwoFactorEvent("disable", "wrong_password")
			return ErrWrongPassword
		}
		return fmt.Errorf("verify password: %w", err)
	}

	if err := s.users.DisableTwoFactor(userID); err != nil {
		return err
	}
	if err := s.backupCodes.DeleteByUserID(userID); err != nil {
		s.logger.Warn("backup code cleanup failed on 2FA disable", "user_id", userID, "error", err)
	}

	observability.RecordTwoFactorEvent("disable", "success")
	s.auditor.Record(AuditEvent{
		UserID:      userID,
		Action:      domain.AuditTwoFactorDisabled,
		Status:      domain.AuditSuccess,
		IPAddress:   meta.IPAddress,
		BrowserInfo: meta.BrowserInfo,
	})
	return nil
}

// SecurityInfo returns the 2FA flag plus live sessions. A session query
// failure degrades to an empty list instead of failing the response.
func (s *AccountSecurityService) SecurityInfo(userID, currentSessionID uint) (*SecurityInfo, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}

	views, err := s.sessions.ListForUser(userID, currentSessionID)
	if err != nil {
		s.logger.Warn("session listing failed, degrading to empty list", "user_id", userID, "error", err)
		views = []SessionView{}
	}
	return &SecurityInfo{TwoFactorEnabled: user.TwoFactorEnabled, Sessions: views}, nil
}

// VerifySecondFactor checks a login-time code: first as a TOTP value, then
// as an unused backup code, which is consumed on match.
func (s *AccountSecurityService) VerifySecondFactor(ctx context.Context, user *domain.User, code string) (string, error) {
	if user.TwoFactorSecret == nil {
		return "", ErrTwoFactorNotSetup
	}
	if err := s.guard.Check(ctx, user.ID); err != nil {
		return "", err
	}

	if s.totp.Validate(code, *user.TwoFactorSecret, time.Now()) {
		s.guard.Reset(ctx, user.ID)
		return "totp", nil
	}

	unused, err := s.backupCodes.ListUnusedByUserID(user.ID)
	if err == nil {
		for _, bc := range unused {
			if s.hasher.Verify(bc.CodeHash, code) == nil {
				if err := s.backupCodes.MarkUsed(bc.ID); err != nil {
					// Already consumed by a concurrent attempt; treat as spent.
					continue
				}
				s.guard.Reset(ctx, user.ID)
				return "backup_code", nil
			}
		}
	}

	s.guard.RecordFailure(ctx, user.ID)
	return "", ErrInvalidTwoFactorCode
}
