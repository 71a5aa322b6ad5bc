package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"

	"github.com/mtvts/mtvts/internal/app"
	"github.com/mtvts/mtvts/internal/auth"
	"github.com/mtvts/mtvts/internal/observability"
	"github.com/mtvts/mtvts/internal/payments"
	"github.com/mtvts/mtvts/internal/platform/cache"
	"github.com/mtvts/mtvts/internal/platform/db"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/reports"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
	"github.com/mtvts/mtvts/internal/users"
	"github.com/mtvts/mtvts/internal/violations"
	"github.com/mtvts/mtvts/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	loc := cfg.Location()

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	tokens := shared.NewTokenStore(redisClient, cfg.TokenTTL)
	rbacMiddleware := rbac.Middleware{Tokens: tokens, Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	userRepo := users.NewRepository(dbpool)
	authService := auth.NewService(userRepo, tokens, logger)
	usersService := users.NewService(userRepo, tokens, logger)
	usersService.SetAudit(auditLogger)

	violationService := violations.NewService(
		violations.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "violations", cfg.CacheTTL),
		logger,
	)
	violationService.SetAudit(auditLogger)

	reportsService := reports.NewService(
		reports.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "reports", cfg.CacheTTL),
		logger,
		loc,
	)

	ticketService := tickets.NewService(tickets.NewRepository(dbpool, cfg.DBLockTimeout), logger, metrics, tickets.Options{
		Location:    loc,
		MaxAttempts: cfg.IssueMaxAttempts,
	})
	ticketService.SetInvalidator(reportsService)

	paymentService := payments.NewService(payments.NewRepository(dbpool, cfg.DBLockTimeout), ticketService, logger, metrics)
	paymentService.SetKeyClaimer(idempotencyStore)
	paymentService.SetLocation(loc)
	paymentService.SetInvalidator(reportsService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()
	if _, err := jobClient.EnqueueReportsWarmup(ctx); err != nil {
		logger.Warn("enqueue reports warmup", slog.Any("error", err))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		RBAC:    rbacMiddleware,
		Checks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		AuthHandler:       auth.NewHandler(logger, authService, rbacMiddleware),
		UsersHandler:      users.NewHandler(logger, usersService, rbacMiddleware),
		ViolationsHandler: violations.NewHandler(logger, violationService, rbacMiddleware),
		TicketsHandler:    tickets.NewHandler(logger, ticketService, rbacMiddleware),
		PaymentsHandler:   payments.NewHandler(logger, paymentService, rbacMiddleware),
		ReportsHandler:    reports.NewHandler(logger, reportsService, rbacMiddleware),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
