package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botsupport/internal/audit"
	"botsupport/internal/auth"
	"botsupport/internal/config"
	"botsupport/internal/db"
	httpserver "botsupport/internal/http"
	"botsupport/internal/logging"
	"botsupport/internal/metrics"
	"botsupport/internal/migrate"
	"botsupport/internal/secret"
	"botsupport/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	// The API still starts without a database: health reports it and the
	// apply endpoint answers config_missing.
	var pinger httpserver.Pinger
	var users store.Querier
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := store.Connect(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("db connection failed", "target", secret.Redact(cfg.DatabaseURL), "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pinger = pool
		users = pool
	} else {
		logger.Warn("no database connection string configured", "checked", config.DescriptorEnvNames)
	}

	source := migrate.SourceFor(cfg.MigrationsDir)
	if _, err := source.List(); err != nil {
		logger.Error("migration scripts unreadable", "dir", cfg.MigrationsDir, "error", err)
		os.Exit(1)
	}

	collector := metrics.New()
	applier := migrate.New(db.Open, logger, migrate.Options{
		Schema: cfg.Schema,
		Prefix: cfg.TablePrefix,
		Observe: func(kind migrate.Kind, elapsed time.Duration) {
			collector.ObserveApply(string(kind), elapsed)
		},
	})

	gate := auth.NewGate(cfg.Restricted(), cfg.MigrationToken)
	if gate.Restricted && gate.Token == "" {
		logger.Warn("restricted environment without migration token; gated routes will reject every request", "env", cfg.Environment)
	}

	descriptor := cfg.MigrationURL()
	migrationHandler := httpserver.NewMigrationHandler(source, applier, descriptor, cfg.ApplyTimeout, logger)
	tablesHandler := httpserver.NewTablesHandler(db.Open, descriptor, cfg.Schema, cfg.TablePrefix, logger)
	userHandler := httpserver.NewUserHandler(users, logger)
	server := httpserver.New(cfg, logger, pinger, gate, collector, migrationHandler, tablesHandler, userHandler)

	logStartupEvent(ctx, logger, cfg)

	if err := server.Start(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func logStartupEvent(ctx context.Context, logger *slog.Logger, cfg config.Config) {
	_, _ = audit.LogEvent(ctx, logger, audit.Event{
		Action:     "server_started",
		EntityType: "system",
		Payload: map[string]any{
			"http_addr":  cfg.HTTPAddress,
			"env":        cfg.Environment,
			"restricted": cfg.Restricted(),
			"db_source":  config.DescriptorSource(),
			"ts":         time.Now().UTC(),
		},
	})
}
