package service

import (
	"time"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/observability"
	"github.com/rollt/rollt-server/internal/repository"
)

// SessionView is the projection returned by the security-info endpoint.
type SessionView struct {
	ID         uint      `json:"id"`
	DeviceName string    `json:"deviceName"`
	Browser    string    `json:"browser"`
	Location   string    `json:"location"`
	LastActive time.Time `json:"lastActive"`
	IsCurrent  bool      `json:"isCurrent"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	auditor     *Auditor
	ttl         time.Duration
}

func NewSessionService(sessionRepo repository.SessionRepository, auditor *Auditor, ttl time.Duration) *SessionService {
	return &SessionService{sessionRepo: sessionRepo, auditor: auditor, ttl: ttl}
}

// Open creates the session row for a fresh login. The row exists before the
// token is signed so the token can carry the session id.
func (s *SessionService) Open(userID uint, device DeviceInfo) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		UserID:         userID,
		DeviceName:     device.DeviceName,
		BrowserInfo:    device.BrowserInfo,
		IPAddress:      device.IPAddress,
		Location:       device.Location,
		IsActive:       true,
		ExpiresAt:      now.Add(s.ttl),
		LastActivityAt: now,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// AttachToken stores the issued bearer token on the session row for
// traceability. The gate never authenticates against this column, so a
// failed write is logged by the repository metrics and otherwise ignored.
func (s *SessionService) AttachToken(session *domain.Session, token string) {
	session.Token = token
	_ = s.sessionRepo.StoreToken(session.ID, token)
}

func (s *SessionService) ListForUser(userID, currentSessionID uint) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		if !session.Live(now) {
			continue
		}
		location := session.Location
		if location == "" {
			location = "unknown"
		}
		views = append(views, SessionView{
			ID:         session.ID,
			DeviceName: session.DeviceName,
			Browser:    session.BrowserInfo,
			Location:   location,
			LastActive: session.LastActivityAt,
			IsCurrent:  session.ID == currentSessionID,
		})
	}
	return views, nil
}

// Revoke deactivates one session owned by userID. Ownership failures and
// missing rows are both repository.ErrSessionNotFound; callers must not be
// able to distinguish "not yours" from "does not exist".
func (s *SessionService) Revoke(userID, sessionID uint) error {
	if _, err := s.sessionRepo.DeactivateByIDForUser(userID, sessionID); err != nil {
		return err
	}
	observability.RecordSessionRevocation("single", 1)
	return nil
}

// RevokeOthers deactivates every active session except the current one and
// audits the sweep.
func (s *SessionService) RevokeOthers(userID, currentSessionID uint, ip, browser string) (int64, error) {
	count, err := s.sessionRepo.DeactivateOthersByUser(userID, currentSessionID)
	if err != nil {
		return 0, err
	}
	observability.RecordSessionRevocation("all_others", count)
	s.auditor.Record(AuditEvent{
		UserID:      userID,
		Action:      domain.AuditLogoutAllDevices,
		Status:      domain.AuditSuccess,
		IPAddress:   ip,
		BrowserInfo: browser,
	})
	return count, nil
}

func (s *SessionService) Touch(sessionID uint) {
	// Activity stamps are advisory; a failed touch is not worth failing
	// the request over.
	_ = s.sessionRepo.TouchActivity(sessionID)
}
