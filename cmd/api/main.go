// Package main is the entrypoint for the adpulse API server and scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/handler"
	"github.com/adpulse/adpulse/internal/metaads"
	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/report"
	"github.com/adpulse/adpulse/internal/repository"
	"github.com/adpulse/adpulse/internal/scheduler"
	"github.com/adpulse/adpulse/internal/server"
	"github.com/adpulse/adpulse/internal/service"
	"github.com/adpulse/adpulse/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	var recorder metrics.Recorder = metrics.NewNoop()
	if cfg.MetricsEnabled {
		recorder = metrics.NewPrometheus("adpulse")
	}

	graph, err := metaads.NewClient(metaads.Config{
		BaseURL:           cfg.MetaGraphURL,
		DefaultAPIVersion: cfg.MetaAPIVersion,
		Timeout:           cfg.MetaHTTPTimeout,
		RequestsPerSecond: cfg.MetaRateLimitRPS,
		MaxPages:          cfg.MetaMaxPages,
	}, logger, recorder)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}

	// The delivery log runs on database/sql over the same pool.
	deliveryDB := stdlib.OpenDBFromPool(repo.Pool())
	deliveries := webhook.NewRepository(deliveryDB)
	validator := webhook.NewValidator(cfg.WebhookRequireHTTPS, cfg.WebhookBlockPrivate)
	dispatcher := webhook.NewDispatcher(webhook.DispatcherConfig{
		Timeout:       cfg.WebhookTimeout,
		SigningSecret: cfg.WebhookSigningSecret,
	}, deliveries, logger, recorder)

	formatter := report.NewFormatter(cfg.ReportLocale, cfg.ReportCurrencySymbol)

	reportService := service.NewReportService(service.ReportDeps{
		Gateway:  graph,
		Settings: repo,
		Clients:  repo,
		Reports:  repo,
		Cache:    cacheClient,
		CacheTTL: cfg.ReportCacheTTL,
		AdLimit:  cfg.MetaAdLimit,
		Recorder: recorder,
		Logger:   logger,
	})
	scheduleService := service.NewScheduleService(repo, repo, repo, validator, deliveries, logger)
	formatService := service.NewFormatService(repo, logger)
	accountService := service.NewAccountService(repo, repo, logger)

	runner := scheduler.NewRunner(scheduler.Config{
		TickInterval:    cfg.SchedulerTickInterval,
		MaxTickDuration: cfg.SchedulerMaxTickDuration,
		Policy: scheduler.Policy{
			Cooldown: cfg.SchedulerCooldown,
			Window:   cfg.SchedulerWindow,
		},
	}, repo, reportService, formatter, dispatcher, cacheClient, logger, recorder)

	routes := server.Routes{
		Health: handler.NewHealthHandler(logger,
			handler.HealthCheck{Name: "postgres", Checker: repo},
			handler.HealthCheck{Name: "redis", Checker: cacheClient},
		),
		Reports:   handler.NewReportHandler(reportService, formatService, formatter, logger),
		Schedules: handler.NewScheduleHandler(scheduleService, runner, logger),
		Formats:   handler.NewFormatHandler(formatService, logger),
		Accounts:  handler.NewAccountHandler(accountService, logger),
		APIKeys:   handler.NewAPIKeyHandler(repo, cacheClient, cfg.APIKeyEnv(), logger),
		Keys:      repo,
		AuthCache: cacheClient,
		Limiter:   cacheClient,
	}
	if cfg.MetricsEnabled {
		routes.Metrics = handler.MetricsHandler(recorder)
	}

	router := server.NewRouter(server.RouterConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitAPI:       cfg.RateLimitAPIEnabled,
		RateLimitIP:        cfg.RateLimitIPEnabled,
		RateLimitIPRPS:     cfg.RateLimitIPRPS,
		RateLimitIPBurst:   cfg.RateLimitIPBurst,
	}, routes, logger)

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("delivery log", func(context.Context) error {
		return deliveryDB.Close()
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.SchedulerEnabled {
		srv.Go("scheduler", runner.Run)
	} else {
		logger.Info("in-process scheduler disabled; use POST /api/v1/scheduler/tick")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"scheduler", cfg.SchedulerEnabled,
		"graph_api_version", cfg.MetaAPIVersion,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and
// makes it the slog default.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
