package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/reservation-service/internal/model"
	"github.com/deskhive/deskhive/services/reservation-service/internal/schedule"
)

// ErrDoubleBooking is surfaced when the commit-time recheck finds another
// reservation already holding (or too close to) one of the new intervals. The
// availability precheck and the insert are separate statements, so two
// concurrent requests can both see a desk as free; the exclusion constraint on
// reservation_intervals and the buffer recheck close that race.
var ErrDoubleBooking = errors.New("desk interval already booked")

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts the reservation and its intervals. An exclusion-constraint
// violation on any interval comes back as ErrDoubleBooking.
func (r *ReservationRepository) Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO reservations (org_id, desk_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, res.OrgID, res.DeskID, res.UserID).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, iv := range res.Intervals {
		_, err := tx.Exec(ctx, `
			INSERT INTO reservation_intervals (reservation_id, desk_id, start_time, end_time)
			VALUES ($1, $2, $3, $4)
		`, id, res.DeskID, iv.Start, iv.End)
		if err != nil {
			if isExclusionViolation(err) {
				return "", ErrDoubleBooking
			}
			return "", err
		}
	}
	return id, nil
}

// VerifyBufferClear rechecks, inside the insert transaction, that none of the
// just-inserted intervals sits closer than buffer to another reservation's
// interval on the same desk. The exclusion constraint only blocks raw overlap;
// this covers the widened window while the cleaning policy is on.
func (r *ReservationRepository) VerifyBufferClear(ctx context.Context, tx pgx.Tx, deskID, reservationID string, intervals []schedule.Interval, buffer time.Duration) error {
	if buffer <= 0 {
		return nil
	}
	for _, iv := range intervals {
		var n int
		err := tx.QueryRow(ctx, `
			SELECT count(*)
			FROM reservation_intervals
			WHERE desk_id = $1
				AND reservation_id <> $2
				AND start_time < $4
				AND end_time > $3
		`, deskID, reservationID, iv.Start.Add(-buffer), iv.End.Add(buffer)).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDoubleBooking
		}
	}
	return nil
}

// ListIntervalsByDesks returns the reserved intervals per desk within the
// [from, to) window, ordered by start time. Every requested desk is present in
// the result, desks without reservations with a nil slice, so conflict maps
// cover the whole space.
func (r *ReservationRepository) ListIntervalsByDesks(ctx context.Context, deskIDs []string, from, to time.Time) (map[string][]schedule.Interval, error) {
	byDesk := make(map[string][]schedule.Interval, len(deskIDs))
	for _, id := range deskIDs {
		byDesk[id] = nil
	}
	if len(deskIDs) == 0 {
		return byDesk, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT desk_id, start_time, end_time
		FROM reservation_intervals
		WHERE desk_id = ANY($1)
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, deskIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var deskID string
		var iv schedule.Interval
		if err := rows.Scan(&deskID, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		byDesk[deskID] = append(byDesk[deskID], iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return byDesk, nil
}

// ListUpcoming returns the organization's reservations that still have an
// interval ending on or after now, intervals ordered by start. Used by the
// retroactive conflict scan; past intervals are irrelevant to it.
func (r *ReservationRepository) ListUpcoming(ctx context.Context, orgID string, now time.Time) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT res.id, res.org_id, res.desk_id, res.user_id, res.created_at, iv.start_time, iv.end_time
		FROM reservations res
		JOIN reservation_intervals iv ON iv.reservation_id = res.id
		WHERE res.org_id = $1
			AND iv.end_time >= $2
		ORDER BY res.id, iv.start_time ASC
	`, orgID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var id string
		var res model.Reservation
		var iv schedule.Interval
		if err := rows.Scan(&id, &res.OrgID, &res.DeskID, &res.UserID, &res.CreatedAt, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		if len(out) > 0 && out[len(out)-1].ID == id {
			out[len(out)-1].Intervals = append(out[len(out)-1].Intervals, iv)
			continue
		}
		res.ID = id
		res.Intervals = []schedule.Interval{iv}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// GetForUpdate locks a reservation row and loads its intervals.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, orgID, reservationID string) (model.Reservation, error) {
	var res model.Reservation
	err := tx.QueryRow(ctx, `
		SELECT id, org_id, desk_id, user_id, created_at
		FROM reservations
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`, reservationID, orgID).Scan(&res.ID, &res.OrgID, &res.DeskID, &res.UserID, &res.CreatedAt)
	if err != nil {
		return model.Reservation{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT start_time, end_time
		FROM reservation_intervals
		WHERE reservation_id = $1
		ORDER BY start_time ASC
	`, res.ID)
	if err != nil {
		return model.Reservation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return model.Reservation{}, err
		}
		res.Intervals = append(res.Intervals, iv)
	}
	if rows.Err() != nil {
		return model.Reservation{}, rows.Err()
	}
	return res, nil
}

// DeleteInterval removes one interval (a cancelled day) and returns how many
// intervals remain. When none remain the reservation row goes too.
func (r *ReservationRepository) DeleteInterval(ctx context.Context, tx pgx.Tx, reservationID string, iv schedule.Interval) (int, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM reservation_intervals
		WHERE reservation_id = $1 AND start_time = $2 AND end_time = $3
	`, reservationID, iv.Start, iv.End)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, pgx.ErrNoRows
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM reservation_intervals WHERE reservation_id = $1
	`, reservationID).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, reservationID); err != nil {
			return 0, err
		}
	}
	return remaining, nil
}

// ListByOrganization returns recent reservations, optionally filtered by user.
func (r *ReservationRepository) ListByOrganization(ctx context.Context, orgID, userID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT res.id, res.org_id, res.desk_id, res.user_id, res.created_at, iv.start_time, iv.end_time
		FROM reservations res
		JOIN reservation_intervals iv ON iv.reservation_id = res.id
		WHERE res.org_id = $1
			AND ($2 = '' OR res.user_id::text = $2)
			AND res.id IN (
				SELECT id FROM reservations
				WHERE org_id = $1 AND ($2 = '' OR user_id::text = $2)
				ORDER BY created_at DESC
				LIMIT $3
			)
		ORDER BY res.created_at DESC, res.id, iv.start_time ASC
	`, orgID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var id string
		var res model.Reservation
		var iv schedule.Interval
		if err := rows.Scan(&id, &res.OrgID, &res.DeskID, &res.UserID, &res.CreatedAt, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		if len(out) > 0 && out[len(out)-1].ID == id {
			out[len(out)-1].Intervals = append(out[len(out)-1].Intervals, iv)
			continue
		}
		res.ID = id
		res.Intervals = []schedule.Interval{iv}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListDesksBySpace returns the desk identities of one space.
func (r *ReservationRepository) ListDesksBySpace(ctx context.Context, orgID, spaceID string) ([]model.Desk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, location_id, space_id
		FROM desks
		WHERE org_id = $1 AND space_id = $2
		ORDER BY id
	`, orgID, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var desks []model.Desk
	for rows.Next() {
		var d model.Desk
		if err := rows.Scan(&d.ID, &d.OrgID, &d.LocationID, &d.SpaceID); err != nil {
			return nil, err
		}
		desks = append(desks, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return desks, nil
}

func IsDoubleBooking(err error) bool {
	return errors.Is(err, ErrDoubleBooking)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// 23P01 is exclusion_violation: the gist constraint on
// (desk_id, tstzrange(start_time, end_time)) rejected an overlapping insert.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
