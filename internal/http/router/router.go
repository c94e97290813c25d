package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rollt/rollt-server/internal/health"
	"github.com/rollt/rollt-server/internal/http/handler"
	"github.com/rollt/rollt-server/internal/http/middleware"
	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	SecurityHandler  *handler.SecurityHandler
	JWTManager       *security.JWTManager
	CORSOrigins      []string
	APIRateLimitRPM  int
	AuthRateLimitRPM int
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	authGate := middleware.AuthMiddleware(dep.JWTManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": results})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authGate)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.Post("/change-password", dep.SecurityHandler.ChangePassword)
			r.Post("/2fa/generate", dep.SecurityHandler.GenerateTwoFactor)
			r.With(authLimiter).Post("/2fa/verify", dep.SecurityHandler.VerifyTwoFactor)
			r.Post("/2fa/disable", dep.SecurityHandler.DisableTwoFactor)
			r.Get("/security-info", dep.SecurityHandler.SecurityInfo)
			r.Post("/logout-session/{sessionID}", dep.SecurityHandler.LogoutSession)
			r.Post("/logout-all-devices", dep.SecurityHandler.LogoutAllDevices)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
