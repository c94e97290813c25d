package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rollt/rollt-server/internal/http/middleware"
	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/security"
	"github.com/rollt/rollt-server/internal/service"
)

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// identity returns the gate-attached claims and the parsed user id. The
// gate already verified the token, so a missing or unparsable identity here
// is a server-side inconsistency, not a client error.
func identity(r *http.Request) (*security.Claims, uint, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, 0, errors.New("no authenticated identity in context")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, err
	}
	return claims, userID, nil
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IPAddress:   middleware.ClientIP(r),
		BrowserInfo: r.UserAgent(),
	}
}

// writeServiceError maps the service and repository error taxonomy onto
// status codes. Anything unrecognized is a server fault.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrSamePassword),
		errors.Is(err, service.ErrTwoFactorNotSetup),
		errors.Is(err, service.ErrTwoFactorEnabled):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidTwoFactorCode):
		response.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrTwoFactorLocked):
		response.Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicateUser):
		response.Error(w, http.StatusConflict, err.Error())
	default:
		response.InternalError(w, err)
	}
}
