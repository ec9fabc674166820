package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lucirr/dip-console/pkg/observability"
	"github.com/lucirr/dip-console/pkg/oidc"
	"github.com/lucirr/dip-console/pkg/roles"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OIDC          oidc.Config
	Roles         roles.Config
	Session       SessionConfig
	Authz         AuthzConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// RedisConfig holds session-store Redis settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig holds session token settings
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	CookieName string
}

// AuthzConfig holds route-protection settings
type AuthzConfig struct {
	// RulesFile optionally replaces the built-in route table.
	RulesFile string
	// PrefixMatch extends route rules to nested paths. Off by default.
	PrefixMatch bool
}

// AuditConfig holds audit-trail settings
type AuditConfig struct {
	Enabled           bool
	Retention         time.Duration
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CONSOLE_HOST", "0.0.0.0"),
			Port:            getEnv("CONSOLE_PORT", "8080"),
			BaseURL:         getEnv("CONSOLE_BASE_URL", "http://localhost:8080"),
			ReadTimeout:     getEnvDuration("CONSOLE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CONSOLE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CONSOLE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CONSOLE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CONSOLE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("CONSOLE_POSTGRES_URL", ""),
			MaxConns: getEnvInt("CONSOLE_POSTGRES_MAX_CONNS", 20),
			MinConns: getEnvInt("CONSOLE_POSTGRES_MIN_CONNS", 2),
			Timeout:  getEnvDuration("CONSOLE_POSTGRES_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CONSOLE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CONSOLE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CONSOLE_REDIS_DB", 0),
		},
		OIDC: oidc.Config{
			IssuerURL:    getEnv("CONSOLE_OIDC_ISSUER_URL", ""),
			ClientID:     getEnv("CONSOLE_OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("CONSOLE_OIDC_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("CONSOLE_OIDC_REDIRECT_URL", ""),
			Scopes:       getEnvList("CONSOLE_OIDC_SCOPES", []string{"openid", "profile", "email"}),
		},
		Roles: roles.Config{
			BaseURL:        getEnv("CONSOLE_ROLES_BASE_URL", ""),
			ServiceUser:    getEnv("CONSOLE_ROLES_SERVICE_USER", ""),
			ServiceToken:   getEnv("CONSOLE_ROLES_SERVICE_TOKEN", ""),
			TenantHostname: getEnv("CONSOLE_ROLES_TENANT_HOSTNAME", ""),
			Timeout:        getEnvDuration("CONSOLE_ROLES_TIMEOUT", roles.DefaultTimeout),
		},
		Session: SessionConfig{
			Secret:     getEnv("CONSOLE_SESSION_SECRET", ""),
			Issuer:     getEnv("CONSOLE_SESSION_ISSUER", "dip-console"),
			TTL:        getEnvDuration("CONSOLE_SESSION_TTL", 12*time.Hour),
			CookieName: getEnv("CONSOLE_SESSION_COOKIE", "console_session"),
		},
		Authz: AuthzConfig{
			RulesFile:   getEnv("CONSOLE_ROUTE_RULES_FILE", ""),
			PrefixMatch: getEnvBool("CONSOLE_ROUTE_PREFIX_MATCH", false),
		},
		Audit: AuditConfig{
			Enabled:           getEnvBool("CONSOLE_AUDIT_ENABLED", true),
			Retention:         getEnvDuration("CONSOLE_AUDIT_RETENTION", 90*24*time.Hour),
			RetentionSchedule: getEnv("CONSOLE_AUDIT_RETENTION_SCHEDULE", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("CONSOLE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CONSOLE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CONSOLE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CONSOLE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CONSOLE_OTEL_SERVICE_NAME", "dip-console"),
			OTelServiceVersion: getEnv("CONSOLE_OTEL_SERVICE_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if err := c.OIDC.Validate(); err != nil {
		return fmt.Errorf("oidc: %w", err)
	}
	if err := c.Roles.Validate(); err != nil {
		return fmt.Errorf("roles: %w", err)
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
