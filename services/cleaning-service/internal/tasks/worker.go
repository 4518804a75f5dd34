package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	otelx "github.com/deskhive/deskhive/libs/otel"
	"github.com/deskhive/deskhive/services/cleaning-service/internal/outbox"
)

// Worker drains due cleaning tasks and turns each into a crew notice event.
// Fetch, emit, and status update share one transaction, so a crash replays
// the batch instead of dropping it.
type Worker struct {
	pool      *db.Pool
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("cleaning task batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var ids []int64
	var failed []Task
	for _, task := range due {
		taskCtx := otelx.ContextWithTraceContext(ctx, task.Traceparent, task.Tracestate)
		payload, err := json.Marshal(map[string]any{
			"reservation_id": task.ReservationID,
			"org_id":         task.OrgID,
			"desk_id":        task.DeskID,
			"clean_at":       task.CleanAt.UTC().Format(time.RFC3339),
			"notify_at":      task.NotifyAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			failed = append(failed, task)
			continue
		}

		if err := w.outbox.Insert(taskCtx, tx, outbox.Event{
			AggregateType: "cleaning_task",
			AggregateID:   task.ReservationID,
			EventType:     outbox.TopicCleaningNoticeDue,
			Payload:       payload,
		}); err != nil {
			failed = append(failed, task)
			continue
		}
		ids = append(ids, task.ID)
	}

	if err := w.repo.MarkNotified(ctx, tx, ids); err != nil {
		return err
	}

	for _, task := range failed {
		taskCtx := otelx.ContextWithTraceContext(ctx, task.Traceparent, task.Tracestate)
		nextRunAt := time.Now().UTC().Add(w.backoff)
		attempts := task.Attempts + 1
		if err := w.repo.MarkFailed(ctx, tx, task.ID, attempts, task.MaxAttempts, nextRunAt, "outbox enqueue failed"); err != nil {
			return err
		}

		if attempts >= task.MaxAttempts {
			if err := w.enqueueDLQ(taskCtx, tx, task, "max attempts reached"); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (w *Worker) enqueueDLQ(ctx context.Context, tx pgx.Tx, task Task, reason string) error {
	payload, err := json.Marshal(map[string]any{
		"reservation_id": task.ReservationID,
		"org_id":         task.OrgID,
		"desk_id":        task.DeskID,
		"clean_at":       task.CleanAt.UTC().Format(time.RFC3339),
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "cleaning_task",
		AggregateID:   task.ReservationID,
		EventType:     outbox.TopicCleaningNoticeDLQ,
		Payload:       payload,
	})
}
