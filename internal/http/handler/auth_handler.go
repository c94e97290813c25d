package handler

import (
	"errors"
	"net/http"

	"github.com/rollt/rollt-server/internal/domain"
	"github.com/rollt/rollt-server/internal/http/middleware"
	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/observability"
	"github.com/rollt/rollt-server/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}

	device := service.ParseDevice(r.UserAgent(), middleware.ClientIP(r))
	result, err := h.auth.Register(req.Username, req.Email, req.Password, device)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	observability.Audit(r, "user registered", "user_id", result.User.ID)
	response.JSON(w, http.StatusCreated, authResponse{
		Message: "Registration successful",
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	device := service.ParseDevice(r.UserAgent(), middleware.ClientIP(r))
	result, err := h.auth.Login(r.Context(), req.Email, req.Password, req.Code, device)
	if err != nil {
		// The client needs to know a second factor is expected so it can
		// prompt for a code instead of reporting bad credentials.
		if errors.Is(err, service.ErrTwoFactorRequired) {
			response.JSON(w, http.StatusUnauthorized, map[string]any{
				"message":           err.Error(),
				"twoFactorRequired": true,
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, userID, err := identity(r)
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if err := h.auth.Logout(userID, claims.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}
