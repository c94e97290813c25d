package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rollt/rollt-server/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	authLoginCounter      metric.Int64Counter
	passwordChangeCounter metric.Int64Counter
	twoFactorCounter      metric.Int64Counter
	sessionRevokeCounter  metric.Int64Counter
	repoOpCounter         metric.Int64Counter
	tokenValidateCounter  metric.Int64Counter
	rateLimitCounter      metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("rollt-server")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	passwordChangeCounter, err := meter.Int64Counter("security.password_change.attempts")
	if err != nil {
		return nil, err
	}
	twoFactorCounter, err := meter.Int64Counter("security.twofactor.events")
	if err != nil {
		return nil, err
	}
	sessionRevokeCounter, err := meter.Int64Counter("security.session.revocations")
	if err != nil {
		return nil, err
	}
	repoOpCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	tokenValidateCounter, err := meter.Int64Counter("auth.token.validations")
	if err != nil {
		return nil, err
	}
	rateLimitCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:      loginCounter,
		passwordChangeCounter: passwordChangeCounter,
		twoFactorCounter:      twoFactorCounter,
		sessionRevokeCounter:  sessionRevokeCounter,
		repoOpCounter:         repoOpCounter,
		tokenValidateCounter:  tokenValidateCounter,
		rateLimitCounter:      rateLimitCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(status, factor string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("factor", factor),
		),
	)
}

func RecordPasswordChange(status string) {
	m := current()
	if m == nil {
		return
	}
	m.passwordChangeCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordTwoFactorEvent(event, status string) {
	m := current()
	if m == nil {
		return
	}
	m.twoFactorCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("status", status),
		),
	)
}

func RecordSessionRevocation(scope string, count int64) {
	m := current()
	if m == nil {
		return
	}
	m.sessionRevokeCounter.Add(context.Background(), count, metric.WithAttributes(attribute.String("scope", scope)))
}

func RecordRepositoryOperation(ctx context.Context, entity, op, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repoOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordAccessTokenValidation(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("decision", decision),
		),
	)
}
