package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tradewind-bank/tradewind/internal/app"
	"github.com/tradewind-bank/tradewind/internal/audit"
	jobmetrics "github.com/tradewind-bank/tradewind/internal/jobs"
	"github.com/tradewind-bank/tradewind/internal/platform/db"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	tasks := &jobs.Tasks{
		Logger:            logger,
		Scanner:           workflow.NewRepository(pool),
		Audit:             audit.NewService(audit.NewRepository(pool)),
		Idempotency:       shared.NewIdempotencyStore(pool),
		Metrics:           jobmetrics.NewMetrics(nil),
		AuditRetention:    cfg.AuditRetention,
		StalePendingAfter: cfg.StalePendingAfter,
		IdempotencyMaxAge: cfg.IdempotencyMaxAge,
	}

	reminderTask, err := jobs.NewStaleReminderTask(jobs.StaleReminderPayload{})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Tasks:     tasks,
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: jobs.NewAuditPurgeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
