package config

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	pkgconfig "github.com/authgate/auth-service/pkg/config"
	"github.com/authgate/auth-service/internal/domain"
)

// identifierPattern restricts the configurable users table name to a plain
// SQL identifier, since table names cannot be bound as query parameters.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"auth"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"auth_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// UsersTable names the table the repository reads and writes. The bundled
	// migration only creates the default "users"; any other name must refer to
	// a table provisioned out of band with the same schema.
	UsersTable string `env:"USERS_TABLE" envDefault:"users"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Secrets. The encryption key is hex-encoded and must decode to 32 bytes
	// (AES-256); the refresh token secret keys the at-rest token digest.
	JWTSecret          string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-refresh-secret"`
	EncryptionKeyHex   string `env:"ENCRYPTION_KEY" envDefault:"0000000000000000000000000000000000000000000000000000000000000000"`

	// Token and credential policy
	AccessTokenTTL   string `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	CredentialScheme string `env:"CREDENTIAL_SCHEME" envDefault:"hashed"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	if !identifierPattern.MatchString(cfg.UsersTable) {
		return nil, fmt.Errorf("invalid users table name %q", cfg.UsersTable)
	}

	if _, err := cfg.EncryptionKey(); err != nil {
		return nil, err
	}

	if _, err := domain.ParseCredentialScheme(cfg.CredentialScheme); err != nil {
		return nil, err
	}

	if _, err := time.ParseDuration(cfg.AccessTokenTTL); err != nil {
		return nil, fmt.Errorf("parse access token TTL %q: %w", cfg.AccessTokenTTL, err)
	}

	// Outside development, secrets must be explicitly set and strong.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == "change-this-to-a-secure-secret" {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
		if cfg.RefreshTokenSecret == "change-this-refresh-secret" {
			return nil, fmt.Errorf("REFRESH_TOKEN_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}

// EncryptionKey hex-decodes the configured credential encryption key and
// checks it is a valid AES-256 key.
func (c *Config) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Scheme returns the validated credential scheme for new registrations.
func (c *Config) Scheme() domain.CredentialScheme {
	s, _ := domain.ParseCredentialScheme(c.CredentialScheme)
	return s
}

// AccessTTL returns the validated access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	d, _ := time.ParseDuration(c.AccessTokenTTL)
	return d
}
