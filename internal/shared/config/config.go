package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const devJWTSecret = "dev-only-secret-change-me"

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL selects the PostgreSQL stores. Empty means in-memory stores.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"720h"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"servicedesk-lite"`

	TicketStrictStatus bool `envconfig:"TICKET_STRICT_STATUS" default:"false"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9091"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"tickets.events"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID"`

	OutboxBatchSize         int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxPollInterval      time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxProcessingTimeout time.Duration `envconfig:"OUTBOX_PROCESSING_TIMEOUT" default:"30s"`
	OutboxMaxAttempts       int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "test"
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.JWTTTL <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWTTTL)
	}
	if cfg.OutboxBatchSize <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", cfg.OutboxBatchSize)
	}

	return cfg, nil
}
