package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/k1networth/servicedesk-lite/internal/notify"
	"github.com/k1networth/servicedesk-lite/internal/shared/config"
	"github.com/k1networth/servicedesk-lite/internal/shared/db"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/shared/kafkax"
	"github.com/k1networth/servicedesk-lite/internal/shared/logger"
)

const appName = "notification-service"

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
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = appName
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = pg.Close() }()

	consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: groupID,
	})
	defer func() { _ = consumer.Close() }()

	reg := prometheus.NewRegistry()
	processor := &notify.Processor{
		Ledger:  notify.NewStore(pg),
		Log:     log,
		Metrics: notify.NewMetrics(reg),
	}

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           httpx.NewRouter(log, httpx.RouterConfig{Gatherer: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics_listen", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server_error", slog.String("err", err.Error()))
		}
	}()

	log.Info("consumer_start", slog.String("topic", cfg.KafkaTopic), slog.String("group_id", groupID))
	processor.Run(ctx, consumer)

	httpx.WaitAndShutdown(ctx, log, metricsSrv, 5*time.Second)
}
