package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/service"
)

// SecurityHandler exposes the account-security surface: password change,
// the 2FA lifecycle, and session enumeration and revocation.
type SecurityHandler struct {
	account  *service.AccountSecurityService
	sessions *service.SessionService
}

func NewSecurityHandler(account *service.AccountSecurityService, sessions *service.SessionService) *SecurityHandler {
	return &SecurityHandler{account: account, sessions: sessions}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *SecurityHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	_, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		response.Error(w, http.StatusBadRequest, "Current and new password are required")
		return
	}

	if err := h.account.ChangePassword(userID, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}

func (h *SecurityHandler) GenerateTwoFactor(w http.ResponseWriter, r *http.Request) {
	_, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	setup, err := h.account.GenerateTwoFactor(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"qrCode":  setup.QRCodeDataURI,
		"secret":  setup.Secret,
		"message": "Scan the QR code with your authenticator app, then verify a code",
	})
}

type verifyTwoFactorRequest struct {
	Code string `json:"code"`
}

func (h *SecurityHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	_, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	var req verifyTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		response.Error(w, http.StatusBadRequest, "Verification code is required")
		return
	}

	backupCodes, err := h.account.VerifyTwoFactor(r.Context(), userID, req.Code, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// The plaintext codes are shown exactly once; only hashes are stored.
	response.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Two-factor authentication enabled",
		"backupCodes": backupCodes,
	})
}

type disableTwoFactorRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

func (h *SecurityHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	_, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	var req disableTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" {
		response.Error(w, http.StatusBadRequest, "Current password is required")
		return
	}

	if err := h.account.DisableTwoFactor(userID, req.CurrentPassword, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Two-factor authentication disabled",
	})
}

func (h *SecurityHandler) SecurityInfo(w http.ResponseWriter, r *http.Request) {
	claims, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	h.sessions.Touch(claims.SessionID)

	info, err := h.account.SecurityInfo(userID, claims.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"twoFactorEnabled": info.TwoFactorEnabled,
		"sessions":         info.Sessions,
	})
}

func (h *SecurityHandler) LogoutSession(w http.ResponseWriter, r *http.Request) {
	_, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	sessionID, err := strconv.ParseUint(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		// A non-numeric id can never name a session; same answer as a
		// missing row.
		writeServiceError(w, repository.ErrSessionNotFound)
		return
	}

	if err := h.sessions.Revoke(userID, uint(sessionID)); err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session logged out",
	})
}

func (h *SecurityHandler) LogoutAllDevices(w http.ResponseWriter, r *http.Request) {
	claims, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	meta := requestMeta(r)
	count, err := h.sessions.RevokeOthers(userID, claims.SessionID, meta.IPAddress, meta.BrowserInfo)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out from all other devices",
		"revoked": count,
	})
}
