// Package app wires configuration, storage, observability and the HTTP
// surface into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rollt/rollt-server/internal/config"
	"github.com/rollt/rollt-server/internal/health"
	"github.com/rollt/rollt-server/internal/http/handler"
	"github.com/rollt/rollt-server/internal/http/router"
	"github.com/rollt/rollt-server/internal/observability"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/security"
	"github.com/rollt/rollt-server/internal/service"
)

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	redis   *redis.Client
	obs     *observability.Runtime
	server  *http.Server
	handler http.Handler
}

// New builds the full dependency graph. Construction is explicit and
// top-down; nothing reaches for globals.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	obs, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var redisClient *redis.Client
	guard := service.NewNoopTwoFactorGuard()
	if cfg.RedisAddr != "" && cfg.TwoFactorGuardEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		guard = service.NewRedisTwoFactorGuard(redisClient, cfg.TwoFactorMaxFailures, cfg.TwoFactorFailureTTL, logger)
	}

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	backupCodes := repository.NewBackupCodeRepository(db)
	audits := repository.NewAuditLogRepository(db)

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	totp := security.NewTOTPProvisioner(cfg.TOTPIssuer)
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)

	auditor := service.NewAuditor(audits, logger)
	sessionSvc := service.NewSessionService(sessions, auditor, cfg.SessionTTL)
	accountSvc := service.NewAccountSecurityService(users, backupCodes, sessionSvc, hasher, totp, guard, auditor, logger)
	authSvc := service.NewAuthService(users, sessionSvc, accountSvc, hasher, jwtMgr, cfg.TokenTTL, auditor, logger)

	checks := []health.Check{
		{Name: "database", Probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
	}
	if redisClient != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc),
		SecurityHandler:  handler.NewSecurityHandler(accountSvc, sessionSvc),
		JWTManager:       jwtMgr,
		CORSOrigins:      cfg.CORSOrigins,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:        health.NewProbeRunner(2*time.Second, checks...),
		EnableOTelHTTP:   cfg.OTELTracingEnabled,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		obs:    obs,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		handler: h,
	}, nil
}

// Handler exposes the assembled HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) DB() *gorm.DB { return a.db }

// Run serves until the context is cancelled or a termination signal
// arrives, then drains connections within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr, "profile", a.cfg.Profile)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	return errors.Join(err, a.Close())
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, a.obs.Shutdown(shutdownCtx))
	return errors.Join(errs...)
}
