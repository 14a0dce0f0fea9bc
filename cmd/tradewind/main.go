package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradewind-bank/tradewind/internal/app"
	"github.com/tradewind-bank/tradewind/internal/audit"
	"github.com/tradewind-bank/tradewind/internal/observability"
	"github.com/tradewind-bank/tradewind/internal/platform/cache"
	"github.com/tradewind-bank/tradewind/internal/platform/db"
	"github.com/tradewind-bank/tradewind/internal/rbac"
	"github.com/tradewind-bank/tradewind/internal/shared"
	"github.com/tradewind-bank/tradewind/internal/workflow"
	"github.com/tradewind-bank/tradewind/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	// A catalog hole is a deployment error, not a per-request condition.
	if err := rbac.ValidateCatalog(); err != nil {
		logger.Error("permission catalog invalid", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	sessions := shared.NewSessionStore(redisClient, cfg.SessionTTL)
	rbacMiddleware := rbac.Middleware{Sessions: sessions, Logger: logger}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	badges := workflow.NewBadgeCache(redisClient, cfg.BadgeTTL)

	workflowRepo := workflow.NewRepository(pool)
	workflowService := workflow.NewService(workflowRepo, auditLogger, badges)
	workflowHandler := workflow.NewHandler(logger, workflowService, rbacMiddleware, metrics, shared.NewIdempotencyStore(pool))

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	permissionsHandler := rbac.NewPermissionsHandler(rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		WorkflowHandler:    workflowHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
