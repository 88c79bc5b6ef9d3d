package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/k1networth/servicedesk-lite/internal/outbox"
	"github.com/k1networth/servicedesk-lite/internal/shared/config"
	"github.com/k1networth/servicedesk-lite/internal/shared/db"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/shared/kafkax"
	"github.com/k1networth/servicedesk-lite/internal/shared/logger"
)

const appName = "outbox-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", slog.String("err", err.Error()))
		os.Exit(2)
	}
	log := logger.New(appName, cfg.AppEnv, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		log.Error("config_error", slog.String("err", "DATABASE_URL is empty"))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			log.Error("db_close_failed", slog.String("err", err.Error()))
		}
	}()

	producer := kafkax.NewProducer(kafkax.ProducerConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		ClientID: appName,
	})
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("kafka_close_failed", slog.String("err", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	metricsSrv := metricsServer(log, cfg.MetricsAddr, reg, pg)

	relay := &outbox.Relay{
		Store:     outbox.NewStore(pg),
		Publisher: producer,
		Metrics:   outbox.NewMetrics(reg),
		Log:       log,
		Config: outbox.RelayConfig{
			BatchSize:         cfg.OutboxBatchSize,
			ProcessingTimeout: cfg.OutboxProcessingTimeout,
			MaxAttempts:       cfg.OutboxMaxAttempts,
			PublishTimeout:    5 * time.Second,
		},
	}

	log.Info("relay_start",
		slog.Int("batch_size", cfg.OutboxBatchSize),
		slog.String("poll_interval", cfg.OutboxPollInterval.String()),
		slog.String("processing_timeout", cfg.OutboxProcessingTimeout.String()),
		slog.Int("max_attempts", cfg.OutboxMaxAttempts),
		slog.String("topic", cfg.KafkaTopic),
	)

	relay.Run(ctx, cfg.OutboxPollInterval)
	log.Info("relay_shutdown")

	httpx.WaitAndShutdown(ctx, log, metricsSrv, 5*time.Second)
}

// metricsServer serves /metrics, /healthz and /readyz for a worker process.
func metricsServer(log *slog.Logger, addr string, reg *prometheus.Registry, pg *sql.DB) *http.Server {
	srv := &http.Server{
		Addr: addr,
		Handler: httpx.NewRouter(log, httpx.RouterConfig{
			Gatherer: reg,
			Ready: func(r *http.Request) error {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				return pg.PingContext(ctx)
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics_listen", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server_error", slog.String("err", err.Error()))
		}
	}()
	return srv
}
