package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
)

// IdempotencyRecord is the stored outcome of a previous create attempt with
// the same Idempotency-Key, replayed verbatim to retrying clients.
type IdempotencyRecord struct {
	OrgID           string
	IdempotencyKey  string
	ReservationID   string
	StatusCode      int
	ResponsePayload []byte
}

type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Lock claims the key inside the transaction. The second return value reports
// whether the key already existed (a prior attempt reached Finalize).
func (r *IdempotencyRepository) Lock(ctx context.Context, tx pgx.Tx, orgID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectForUpdate(ctx, tx, orgID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservation_idempotency_keys (org_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (org_id, idempotency_key) DO NOTHING
	`, orgID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectForUpdate(ctx, tx, orgID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, tx pgx.Tx, orgID, key, reservationID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE reservation_idempotency_keys
		SET reservation_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE org_id = $1 AND idempotency_key = $2
	`, orgID, key, reservationID, statusCode, response)
	return err
}

func (r *IdempotencyRepository) selectForUpdate(ctx context.Context, tx pgx.Tx, orgID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT org_id::text,
			idempotency_key,
			COALESCE(reservation_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM reservation_idempotency_keys
		WHERE org_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, orgID, key).Scan(
		&rec.OrgID,
		&rec.IdempotencyKey,
		&rec.ReservationID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
