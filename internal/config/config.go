package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable for the server process. Values come from the
// environment; Load applies defaults and validates before the app starts.
type Config struct {
	Profile string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	SessionTTL time.Duration

	BcryptCost int

	TOTPIssuer            string
	TwoFactorMaxFailures  int
	TwoFactorFailureTTL   time.Duration
	TwoFactorGuardEnabled bool

	APIRateLimitRPM  int
	AuthRateLimitRPM int

	CORSOrigins []string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

const (
	ProfileDev  = "dev"
	ProfileProd = "prod"
	ProfileTest = "test"
)

func Load() (*Config, error) {
	cfg := &Config{
		Profile:                   envString("APP_PROFILE", ProfileDev),
		HTTPAddr:                  envString("HTTP_ADDR", ":8080"),
		ShutdownTimeout:           envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		DatabaseURL:               envString("DATABASE_URL", ""),
		RedisAddr:                 envString("REDIS_ADDR", ""),
		RedisPassword:             envString("REDIS_PASSWORD", ""),
		RedisDB:                   envInt("REDIS_DB", 0),
		JWTSecret:                 envString("JWT_SECRET", ""),
		JWTIssuer:                 envString("JWT_ISSUER", "rollt"),
		JWTAudience:               envString("JWT_AUDIENCE", "rollt-web"),
		TokenTTL:                  envDuration("TOKEN_TTL", 7*24*time.Hour),
		SessionTTL:                envDuration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost:                envInt("BCRYPT_COST", 10),
		TOTPIssuer:                envString("TOTP_ISSUER", "Rollt"),
		TwoFactorMaxFailures:      envInt("TWOFA_MAX_FAILURES", 5),
		TwoFactorFailureTTL:       envDuration("TWOFA_FAILURE_TTL", 15*time.Minute),
		TwoFactorGuardEnabled:     envBool("TWOFA_GUARD_ENABLED", true),
		APIRateLimitRPM:           envInt("API_RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:          envInt("AUTH_RATE_LIMIT_RPM", 30),
		CORSOrigins:               envStringSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		OTELServiceName:           envString("OTEL_SERVICE_NAME", "rollt-server"),
		OTELEnvironment:           envString("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint:  envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        envBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        envBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           envBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileDev, ProfileProd, ProfileTest:
	default:
		return fmt.Errorf("validate config: unknown profile %q", c.Profile)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("validate config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("validate config: JWT_SECRET must be at least 32 bytes")
	}
	if c.Profile == ProfileProd && c.DatabaseURL == "" {
		return fmt.Errorf("validate config: DATABASE_URL is required in prod")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("validate config: BCRYPT_COST %d out of range", c.BcryptCost)
	}
	if c.TokenTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("validate config: token and session TTLs must be positive")
	}
	if c.TwoFactorMaxFailures <= 0 {
		return fmt.Errorf("validate config: TWOFA_MAX_FAILURES must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

func envStringSlice(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
