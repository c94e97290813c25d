package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/repository"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	return code
}

func TestChangePasswordHappyPath(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	err := env.accountSvc.ChangePassword(u.ID, "Old-Passw0rd!", "New-Passw0rd!", RequestMeta{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}

	reloaded, err := env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if env.hasher.Verify(reloaded.PasswordHash, "New-Passw0rd!") != nil {
		t.Fatal("new password must verify")
	}
	if env.hasher.Verify(reloaded.PasswordHash, "Old-Passw0rd!") == nil {
		t.Fatal("old password must no longer verify")
	}
	if reloaded.PasswordChangedAt == nil {
		t.Fatal("expected change timestamp")
	}

	actions := env.auditActions(t, u.ID)
	if !hasAction(actions, domain.AuditPasswordChanged) {
		t.Fatalf("expected PASSWORD_CHANGED audit entry, got %v", actions)
	}
}

func TestChangePasswordRejectsWeakPolicy(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	for _, weak := range []string{"short1", "alllowercase1!", "NOSYMBOLS1a", "NoDigits$aa"} {
		err := env.accountSvc.ChangePassword(u.ID, "Old-Passw0rd!", weak, RequestMeta{})
		if !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("expected weak password error for %q, got %v", weak, err)
		}
	}

	reloaded, err := env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if env.hasher.Verify(reloaded.PasswordHash, "Old-Passw0rd!") != nil {
		t.Fatal("stored hash must be unchanged after rejected attempts")
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	err := env.accountSvc.ChangePassword(u.ID, "not-my-password", "New-Passw0rd!", RequestMeta{})
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected wrong password error, got %v", err)
	}
}

func TestChangePasswordRejectsNoopChange(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	err := env.accountSvc.ChangePassword(u.ID, "Old-Passw0rd!", "Old-Passw0rd!", RequestMeta{})
	if !errors.Is(err, ErrSamePassword) {
		t.Fatalf("expected same password error, got %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	err := env.accountSvc.ChangePassword(9999, "Old-Passw0rd!", "New-Passw0rd!", RequestMeta{})
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestTwoFactorEnrollmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")
	ctx := context.Background()

	setup, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if setup.Secret == "" || setup.QRCodeDataURI == "" {
		t.Fatalf("incomplete setup %+v", setup)
	}

	// Pending: secret stored, flag still false.
	info, err := env.accountSvc.SecurityInfo(u.ID, 0)
	if err != nil {
		t.Fatalf("security info: %v", err)
	}
	if info.TwoFactorEnabled {
		t.Fatal("2FA must stay disabled until verification")
	}

	// Wrong code leaves the pending state and writes a FAILED audit row.
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, "000000", RequestMeta{}); !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected invalid code error, got %v", err)
	}
	if !hasAction(env.auditActions(t, u.ID), domain.AuditTwoFactorVerifyFailed) {
		t.Fatal("expected 2FA_VERIFICATION_FAILED audit entry")
	}

	codes, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, setup.Secret, time.Now()), RequestMeta{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate backup code %q", c)
		}
		seen[c] = true
	}

	info, err = env.accountSvc.SecurityInfo(u.ID, 0)
	if err != nil {
		t.Fatalf("security info: %v", err)
	}
	if !info.TwoFactorEnabled {
		t.Fatal("2FA must be enabled after verification")
	}
	if !hasAction(env.auditActions(t, u.ID), domain.AuditTwoFactorEnabled) {
		t.Fatal("expected 2FA_ENABLED audit entry")
	}
}

func TestVerifyTwoFactorAcceptsDriftedCode(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	setup, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// One step behind the server clock stays inside the skew window.
	code := totpCode(t, setup.Secret, time.Now().Add(-30*time.Second))
	if _, err := env.accountSvc.VerifyTwoFactor(context.Background(), u.ID, code, RequestMeta{}); err != nil {
		t.Fatalf("verify drifted code: %v", err)
	}
}

func TestVerifyTwoFactorWithoutSetup(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	_, err := env.accountSvc.VerifyTwoFactor(context.Background(), u.ID, "123456", RequestMeta{})
	if !errors.Is(err, ErrTwoFactorNotSetup) {
		t.Fatalf("expected not-set-up error, got %v", err)
	}
}

func TestRepeatGenerateOverwritesPendingSecret(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")
	ctx := context.Background()

	first, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected a fresh secret per generate call")
	}

	// The first secret is dead; only the latest verifies.
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, first.Secret, time.Now()), RequestMeta{}); !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected stale secret to be rejected, got %v", err)
	}
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, second.Secret, time.Now()), RequestMeta{}); err != nil {
		t.Fatalf("verify with current secret: %v", err)
	}
}

func TestGenerateTwoFactorRejectedWhileEnabled(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")
	ctx := context.Background()

	setup, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, setup.Secret, time.Now()), RequestMeta{}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Once enabled, only the password-protected disable flow may leave the
	// enabled state; a bare generate call must not downgrade it.
	if _, err := env.accountSvc.GenerateTwoFactor(u.ID); !errors.Is(err, ErrTwoFactorEnabled) {
		t.Fatalf("expected already-enabled error, got %v", err)
	}

	reloaded, err := env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.TwoFactorEnabled {
		t.Fatal("2FA must stay enabled after a rejected generate")
	}
	if reloaded.TwoFactorSecret == nil || *reloaded.TwoFactorSecret != setup.Secret {
		t.Fatal("stored secret must be unchanged after a rejected generate")
	}

	// The original secret still verifies at login.
	if _, err := env.accountSvc.VerifySecondFactor(ctx, reloaded, totpCode(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("second factor with original secret: %v", err)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")
	ctx := context.Background()

	setup, err := env.accountSvc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, setup.Secret, time.Now()), RequestMeta{}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Wrong password leaves everything untouched.
	if err := env.accountSvc.DisableTwoFactor(u.ID, "nope", RequestMeta{}); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected wrong password error, got %v", err)
	}
	reloaded, err := env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.TwoFactorEnabled {
		t.Fatal("2FA must survive a failed disable")
	}

	if err := env.accountSvc.DisableTwoFactor(u.ID, "Old-Passw0rd!", RequestMeta{}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	reloaded, err = env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TwoFactorEnabled || reloaded.TwoFactorSecret != nil {
		t.Fatalf("2FA state not cleared: %+v", reloaded)
	}
	left, err := env.backupCodes.ListUnusedByUserID(u.ID)
	if err != nil {
		t.Fatalf("list codes: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("backup codes must be dropped, got %d", len(left))
	}
	if !hasAction(env.auditActions(t, u.ID), domain.AuditTwoFactorDisabled) {
		t.Fatal("expected 2FA_DISABLED audit entry")
	}

	// A now-stale TOTP code is worthless.
	if _, err := env.accountSvc.VerifyTwoFactor(ctx, u.ID, totpCode(t, setup.Secret, time.Now()), RequestMeta{}); !errors.Is(err, ErrTwoFactorNotSetup) {
		t.Fatalf("expected not-set-up after disable, got %v", err)
	}
}

// failingBackupCodeRepo simulates a store outage during code persistence.
type failingBackupCodeRepo struct{}

func (failingBackupCodeRepo) ReplaceForUser(uint, []string) error { return errors.New("store down") }
func (failingBackupCodeRepo) ListUnusedByUserID(uint) ([]domain.BackupCode, error) {
	return nil, errors.New("store down")
}
func (failingBackupCodeRepo) MarkUsed(uint) error       { return errors.New("store down") }
func (failingBackupCodeRepo) DeleteByUserID(uint) error { return errors.New("store down") }

func TestVerifyTwoFactorToleratesBackupCodeFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	auditor := NewAuditor(env.audits, nil)
	svc := NewAccountSecurityService(
		env.users, failingBackupCodeRepo{}, env.sessionSvc,
		env.hasher, env.totp, NewNoopTwoFactorGuard(), auditor, nil,
	)

	setup, err := svc.GenerateTwoFactor(u.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	codes, err := svc.VerifyTwoFactor(context.Background(), u.ID, totpCode(t, setup.Secret, time.Now()), RequestMeta{})
	if err != nil {
		t.Fatalf("verify must not fail on backup-code outage: %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("expected no codes on persistence failure, got %d", len(codes))
	}

	// Enabled state must not be rolled back.
	reloaded, err := env.users.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.TwoFactorEnabled {
		t.Fatal("2FA must stay enabled despite backup-code failure")
	}
}

// failingSessionRepo simulates a session-table outage for the degrade path.
type failingSessionRepo struct{}

func (failingSessionRepo) Create(*domain.Session) error { return errors.New("sessions down") }
func (failingSessionRepo) FindByIDForUser(uint, uint) (*domain.Session, error) {
	return nil, errors.New("sessions down")
}
func (failingSessionRepo) ListActiveByUserID(uint) ([]domain.Session, error) {
	return nil, errors.New("sessions down")
}
func (failingSessionRepo) StoreToken(uint, string) error { return errors.New("sessions down") }
func (failingSessionRepo) DeactivateByIDForUser(uint, uint) (bool, error) {
	return false, errors.New("sessions down")
}
func (failingSessionRepo) DeactivateOthersByUser(uint, uint) (int64, error) {
	return 0, errors.New("sessions down")
}
func (failingSessionRepo) TouchActivity(uint) error       { return errors.New("sessions down") }
func (failingSessionRepo) CleanupExpired() (int64, error) { return 0, errors.New("sessions down") }

func TestSecurityInfoDegradesToEmptySessionList(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", "alice@example.com", "Old-Passw0rd!")

	auditor := NewAuditor(env.audits, nil)
	brokenSessions := NewSessionService(failingSessionRepo{}, auditor, time.Hour)
	svc := NewAccountSecurityService(
		env.users, env.backupCodes, brokenSessions,
		env.hasher, env.totp, NewNoopTwoFactorGuard(), auditor, nil,
	)

	info, err := svc.SecurityInfo(u.ID, 0)
	if err != nil {
		t.Fatalf("security info must degrade, not fail: %v", err)
	}
	if info.Sessions == nil || len(info.Sessions) != 0 {
		t.Fatalf("expected empty session list, got %v", info.Sessions)
	}
}
