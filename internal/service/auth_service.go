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

type LoginResult struct {
	Token   string
	User    *domain.User
	Session *domain.Session
}

// AuthService covers registration, login and logout. A login mints the
// session row first and then the token, so the token's sid claim always
// points at a persisted session.
type AuthService struct {
	users    repository.UserRepository
	sessions *SessionService
	account  *AccountSecurityService
	hasher   *security.PasswordHasher
	jwt      *security.JWTManager
	tokenTTL time.Duration
	auditor  *Auditor
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions *SessionService,
	account *AccountSecurityService,
	hasher *security.PasswordHasher,
	jwt *security.JWTManager,
	tokenTTL time.Duration,
	auditor *Auditor,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		account:  account,
		hasher:   hasher,
		jwt:      jwt,
		tokenTTL: tokenTTL,
		auditor:  auditor,
		logger:   logger,
	}
}

func (s *AuthService) Register(username, email, password string, device DeviceInfo) (*LoginResult, error) {
	if err := security.ValidatePasswordPolicy(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err)
	}
	if security.PasswordStrength(password) < 2 {
		return nil, fmt.Errorf("%w: password strength too low", ErrWeakPassword)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return s.openSession(user, device)
}

// Login authenticates credentials and, when 2FA is enabled, a second
// factor. Credential failures are uniform: a missing user and a wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password, code string, device DeviceInfo) (*LoginResult, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin("invalid_credentials", "password")
			s.logger.Info("login rejected", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			observability.RecordAuthLogin("invalid_credentials", "password")
			s.auditor.Record(AuditEvent{
				UserID:      user.ID,
				Action:      domain.AuditLoginFailed,
				Status:      domain.AuditFailed,
				IPAddress:   device.IPAddress,
				BrowserInfo: device.BrowserInfo,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	factor := "password"
	if user.TwoFactorEnabled {
		if code == "" {
			observability.RecordAuthLogin("second_factor_required", "password")
			return nil, ErrTwoFactorRequired
		}
		used, err := s.account.VerifySecondFactor(ctx, user, code)
		if err != nil {
			observability.RecordAuthLogin("invalid_second_factor", "password")
			s.auditor.Record(AuditEvent{
				UserID:      user.ID,
				Action:      domain.AuditLoginFailed,
				Status:      domain.AuditFailed,
				IPAddress:   device.IPAddress,
				BrowserInfo: device.BrowserInfo,
			})
			return nil, err
		}
		factor = used
	}

	result, err := s.openSession(user, device)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthLogin("success", factor)
	s.auditor.Record(AuditEvent{
		UserID:      user.ID,
		Action:      domain.AuditLoginSuccess,
		Status:      domain.AuditSuccess,
		IPAddress:   device.IPAddress,
		BrowserInfo: device.BrowserInfo,
	})
	return result, nil
}

// Logout deactivates the caller's current session. Revoking a session that
// is already inactive still succeeds.
func (s *AuthService) Logout(userID, sessionID uint) error {
	return s.sessions.Revoke(userID, sessionID)
}

func (s *AuthService) openSession(user *domain.User, device DeviceInfo) (*LoginResult, error) {
	session, err := s.sessions.Open(user.ID, device)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	token, err := s.jwt.Sign(user.ID, user.Username, session.ID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.sessions.AttachToken(session, token)
	return &LoginResult{Token: token, User: user, Session: session}, nil
}
