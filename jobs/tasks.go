package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tradewind-bank/tradewind/internal/audit"
	jobmetrics "github.com/tradewind-bank/tradewind/internal/jobs"
	"github.com/tradewind-bank/tradewind/internal/shared"
	"github.com/tradewind-bank/tradewind/internal/workflow"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStaleReminder nudges checkers about submissions waiting too long.
	TaskStaleReminder = "queue:stale_reminder"
	// TaskAuditPurge trims the audit trail past its retention window.
	TaskAuditPurge = "audit:purge"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StaleReminderPayload parameterises one reminder scan.
type StaleReminderPayload struct {
	OlderThan time.Duration `json:"older_than"`
	Limit     int           `json:"limit"`
}

// NewStaleReminderTask constructs the reminder task.
func NewStaleReminderTask(payload StaleReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStaleReminder, data), nil
}

// NewAuditPurgeTask constructs the audit retention task.
func NewAuditPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskAuditPurge, nil)
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// StaleScanner lists queue items still awaiting a checker past a cutoff.
type StaleScanner interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]workflow.QueueItem, error)
}

// Tasks bundles the handlers with their dependencies.
type Tasks struct {
	Logger            *slog.Logger
	Scanner           StaleScanner
	Audit             *audit.Service
	Idempotency       *shared.IdempotencyStore
	Metrics           *jobmetrics.Metrics
	AuditRetention    time.Duration
	StalePendingAfter time.Duration
	IdempotencyMaxAge time.Duration
}

// HandleStaleReminder logs every submission that has waited past the cutoff
// so the alerting pipeline can pick it up. Amounts are grouped for readable
// operator output.
func (t *Tasks) HandleStaleReminder(ctx context.Context, task *asynq.Task) error {
	tracker := t.Metrics.Track(TaskStaleReminder)
	var payload StaleReminderPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = t.StalePendingAfter
	}
	if olderThan <= 0 {
		olderThan = 48 * time.Hour
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 100
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	items, err := t.Scanner.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return tracker.End(err)
	}

	printer := message.NewPrinter(language.English)
	for _, item := range items {
		t.Logger.Warn("submission awaiting checker",
			slog.String("reference", item.Reference),
			slog.String("product", string(item.EntityType)),
			slog.String("maker", item.MakerName),
			slog.String("amount", printer.Sprintf("%s %.2f", item.Currency, item.Amount)),
			slog.Duration("waiting", time.Since(item.SubmittedAt)),
		)
	}
	t.Metrics.AddStale(len(items))
	return tracker.End(nil)
}

// HandleAuditPurge enforces the audit retention window.
func (t *Tasks) HandleAuditPurge(ctx context.Context, task *asynq.Task) error {
	tracker := t.Metrics.Track(TaskAuditPurge)
	retention := t.AuditRetention
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	dropped, err := t.Audit.Purge(ctx, retention)
	if err != nil {
		return tracker.End(err)
	}
	t.Logger.Info("audit purge complete", slog.Int64("dropped", dropped))
	return tracker.End(nil)
}

// HandleIdempotencyCleanup drops idempotency keys past their useful life.
func (t *Tasks) HandleIdempotencyCleanup(ctx context.Context, task *asynq.Task) error {
	tracker := t.Metrics.Track(TaskIdempotencyCleanup)
	maxAge := t.IdempotencyMaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return tracker.End(t.Idempotency.Cleanup(ctx, maxAge))
}
