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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/k1networth/servicedesk-lite/internal/auth"
	"github.com/k1networth/servicedesk-lite/internal/shared/config"
	"github.com/k1networth/servicedesk-lite/internal/shared/db"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/shared/logger"
	"github.com/k1networth/servicedesk-lite/internal/ticket"
	"github.com/k1networth/servicedesk-lite/internal/user"
)

const appName = "ticket-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", slog.String("err", err.Error()))
		os.Exit(2)
	}
	log := logger.New(appName, cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		users   user.Store
		tickets ticket.Store
		ready   func(*http.Request) error
	)

	if cfg.DatabaseURL != "" {
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

		if err := db.EnsureSchema(ctx, pg); err != nil {
			log.Error("db_schema_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		users = user.NewPostgresStore(pg)
		tickets = ticket.NewPostgresStore(pg)
		ready = pingReady(pg)
		log.Info("store_postgres")
	} else {
		if !cfg.IsDev() {
			log.Warn("store_in_memory", slog.String("hint", "set DATABASE_URL to persist data"))
		}
		users = user.NewInMemoryStore()
		tickets = ticket.NewInMemoryStore()
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	userH := &user.Handler{Log: log, Store: users, Tokens: tokens, HashCost: bcrypt.DefaultCost}
	ticketH := &ticket.Handler{Log: log, Store: tickets, Users: users, StrictStatus: cfg.TicketStrictStatus}

	handler := httpx.NewRouter(log, httpx.RouterConfig{
		Protect:  auth.Middleware(tokens, log),
		Metrics:  httpx.NewMetrics(reg),
		Gatherer: reg,
		Ready:    ready,
	}, userH, ticketH)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("http_listen", slog.String("addr", srv.Addr), slog.Bool("strict_status", cfg.TicketStrictStatus))

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", slog.String("err", err.Error()))
			stop()
		}
	}()

	httpx.WaitAndShutdown(ctx, log, srv, 10*time.Second)
}

func pingReady(pg *sql.DB) func(*http.Request) error {
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return pg.PingContext(ctx)
	}
}
