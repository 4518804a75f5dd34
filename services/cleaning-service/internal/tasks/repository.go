package tasks

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	otelx "github.com/deskhive/deskhive/libs/otel"
)

// NoticeLead is how far ahead of the cleaning slot the crew is notified.
const NoticeLead = 15 * time.Minute

// Task is one pending desk clean: the 30 minutes after a reservation interval
// ends. NotifyAt is when the crew notice goes out.
type Task struct {
	ID             int64
	IdempotencyKey string
	ReservationID  string
	OrgID          string
	DeskID         string
	CleanAt        time.Time
	NotifyAt       time.Time
	Traceparent    string
	Tracestate     string
	Attempts       int
	MaxAttempts    int
	NextRunAt      time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, task Task) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO cleaning_tasks (idempotency_key, reservation_id, org_id, desk_id, clean_at, notify_at, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, task.IdempotencyKey, task.ReservationID, task.OrgID, task.DeskID, task.CleanAt, task.NotifyAt, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Task, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, idempotency_key, reservation_id, org_id, desk_id, clean_at, notify_at, traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM cleaning_tasks
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.IdempotencyKey, &t.ReservationID, &t.OrgID, &t.DeskID, &t.CleanAt, &t.NotifyAt, &t.Traceparent, &t.Tracestate, &t.Attempts, &t.MaxAttempts, &t.NextRunAt); err != nil {
			return nil, err
		}
		due = append(due, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

func (r *Repository) MarkNotified(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE cleaning_tasks
		SET status = 'notified', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE cleaning_tasks
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}

// Void cancels every still-pending task in the given window of a reservation.
// Invoked off interval cancellation events; already-notified tasks stay put.
func (r *Repository) Void(ctx context.Context, tx pgx.Tx, reservationID string, cleanAt time.Time) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE cleaning_tasks
		SET status = 'voided', updated_at = now()
		WHERE reservation_id = $1 AND clean_at = $2 AND status = 'pending'
	`, reservationID, cleanAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
