package service

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var svcDBCounter int

type testEnv struct {
	db          *gorm.DB
	users       repository.UserRepository
	sessions    repository.SessionRepository
	backupCodes repository.BackupCodeRepository
	audits      repository.AuditLogRepository
	hasher      *security.PasswordHasher
	totp        *security.TOTPProvisioner
	jwt         *security.JWTManager
	sessionSvc  *SessionService
	accountSvc  *AccountSecurityService
	authSvc     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svcDBCounter++
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", svcDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:          db,
		users:       repository.NewUserRepository(db),
		sessions:    repository.NewSessionRepository(db),
		backupCodes: repository.NewBackupCodeRepository(db),
		audits:      repository.NewAuditLogRepository(db),
		hasher:      security.NewPasswordHasher(4),
		totp:        security.NewTOTPProvisioner("Rollt"),
		jwt:         security.NewJWTManager("rollt", "rollt-web", "0123456789abcdef0123456789abcdef"),
	}
	auditor := NewAuditor(env.audits, slog.Default())
	env.sessionSvc = NewSessionService(env.sessions, auditor, 7*24*time.Hour)
	env.accountSvc = NewAccountSecurityService(
		env.users, env.backupCodes, env.sessionSvc,
		env.hasher, env.totp, NewNoopTwoFactorGuard(), auditor, slog.Default(),
	)
	env.authSvc = NewAuthService(
		env.users, env.sessionSvc, env.accountSvc,
		env.hasher, env.jwt, 7*24*time.Hour, auditor, slog.Default(),
	)
	return env
}

func (e *testEnv) createUser(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Username: username, Email: email, PasswordHash: hash}
	if err := e.users.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) auditActions(t *testing.T, userID uint) []domain.AuditAction {
	t.Helper()
	entries, err := e.audits.ListByUserID(userID, 100)
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	actions := make([]domain.AuditAction, 0, len(entries))
	for _, en := range entries {
		actions = append(actions, en.Action)
	}
	return actions
}

func hasAction(actions []domain.AuditAction, want domain.AuditAction) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
