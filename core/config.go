package core

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	DefaultProviderID = "clerk"
)

type HTTPConfig struct {
	Addr         string        `koanf:"addr" mapstructure:"addr"`
	WebhookPath  string        `koanf:"webhook_path" mapstructure:"webhook_path"`
	ReadTimeout  time.Duration `koanf:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" mapstructure:"write_timeout"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type WebhookConfig struct {
	ProviderID    string        `koanf:"provider_id" mapstructure:"provider_id"`
	Secret        string        `koanf:"secret" mapstructure:"secret"`
	Tolerance     time.Duration `koanf:"tolerance" mapstructure:"tolerance"`
	LedgerEnabled bool          `koanf:"ledger_enabled" mapstructure:"ledger_enabled"`
}

type DatabaseConfig struct {
	Driver      string        `koanf:"driver" mapstructure:"driver"`
	DSN         string        `koanf:"dsn" mapstructure:"dsn"`
	Debug       bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
}

// DatabaseConfig satisfies the go-persistence-bun client config.

func (c DatabaseConfig) GetDebug() bool {
	return c.Debug
}

func (c DatabaseConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c DatabaseConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c DatabaseConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c DatabaseConfig) GetOtelIdentifier() string {
	return "go-identity-sync"
}

// SyncConfig controls how user.created deliveries are mirrored.
type SyncConfig struct {
	// IdempotentDuplicates answers 200 when the external id is already mirrored
	// instead of surfacing the uniqueness violation as a 500.
	IdempotentDuplicates bool `koanf:"idempotent_duplicates" mapstructure:"idempotent_duplicates"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
}

type LogConfig struct {
	Format string `koanf:"format" mapstructure:"format"`
	Level  string `koanf:"level" mapstructure:"level"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Sync        SyncConfig     `koanf:"sync" mapstructure:"sync"`
	Kafka       KafkaConfig    `koanf:"kafka" mapstructure:"kafka"`
	Cache       CacheConfig    `koanf:"cache" mapstructure:"cache"`
	Log         LogConfig      `koanf:"log" mapstructure:"log"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity-sync",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			WebhookPath:  "/api/webhooks/clerk",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Webhook: WebhookConfig{
			ProviderID: DefaultProviderID,
			Tolerance:  5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:      DriverPostgres,
			PingTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "users.signup",
		},
		Cache: CacheConfig{
			TTL: time.Minute,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Validate runs once at startup; a missing webhook secret is fatal there
// rather than on the request path.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return configError("core: service_name is required", "service_name")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return configError("core: webhook.secret is required (CLERK_WEBHOOK_SECRET)", "webhook.secret")
	}
	if strings.TrimSpace(c.Webhook.ProviderID) == "" {
		return configError("core: webhook.provider_id is required", "webhook.provider_id")
	}
	if c.Webhook.Tolerance < 0 {
		return configError("core: webhook.tolerance must not be negative", "webhook.tolerance")
	}
	if strings.TrimSpace(c.HTTP.WebhookPath) == "" || !strings.HasPrefix(c.HTTP.WebhookPath, "/") {
		return configError("core: http.webhook_path must start with /", "http.webhook_path")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return configError("core: http.max_body_bytes must be positive", "http.max_body_bytes")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case DriverPostgres, DriverSQLite:
	default:
		return configError("core: database.driver must be postgres or sqlite3", "database.driver")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return configError("core: database.dsn is required (DATABASE_URL)", "database.dsn")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return configError("core: kafka.topic is required when brokers are configured", "kafka.topic")
	}
	return nil
}

func configError(message string, field string) error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfigInvalid)
}
