package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/k1networth/servicedesk-lite/internal/shared/config"
)

func TestFromEnvDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.FromEnv()
	req.NoError(err)

	req.Equal(":8080", cfg.HTTPAddr)
	req.Equal(720*time.Hour, cfg.JWTTTL)
	req.Equal([]string{"localhost:9092"}, cfg.KafkaBrokers)
	req.Equal(50, cfg.OutboxBatchSize)
	req.False(cfg.TicketStrictStatus)
	req.NotEmpty(cfg.JWTSecret)
}

func TestFromEnvRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")

	_, err := config.FromEnv()
	require.Error(t, err)
}

func TestFromEnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "Prod ")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TICKET_STRICT_STATUS", "true")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")

	cfg, err := config.FromEnv()
	req.NoError(err)

	req.Equal("prod", cfg.AppEnv)
	req.Equal("s3cret", cfg.JWTSecret)
	req.Equal([]string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	req.True(cfg.TicketStrictStatus)
	req.Equal(250*time.Millisecond, cfg.OutboxPollInterval)
}

func TestLoadDoesNotOverrideExistingEnv(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:7000\nLOG_LEVEL=debug\n"), 0o600))

	t.Chdir(dir)

	t.Setenv("APP_ENV", "dev")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "")
	_ = os.Unsetenv("LOG_LEVEL")

	cfg, err := config.Load()
	req.NoError(err)
	req.Equal(":9000", cfg.HTTPAddr)
	req.Equal("debug", cfg.LogLevel)
}
