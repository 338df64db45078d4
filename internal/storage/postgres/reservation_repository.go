package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool, q: querier{pool: pool}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const reservationColumns = `
id, pool_id, requester_id, state, units_held, tracking_code, released,
created_at, hold_expires_at, total_window_expires_at, last_transition_at, version`

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.q.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (
	id, pool_id, requester_id, state, units_held, tracking_code, released,
	created_at, hold_expires_at, total_window_expires_at, last_transition_at, version
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.q.exec(ctx, stmt,
		res.ID,
		res.PoolID,
		res.RequesterID,
		res.State,
		res.UnitsHeld,
		res.TrackingCode,
		res.Released,
		res.CreatedAt,
		res.HoldExpiresAt,
		res.TotalWindowExpiresAt,
		res.LastTransitionAt,
		res.Version,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrPoolNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// UpdateState is the conditional state write; a stale version surfaces as
// a concurrency conflict for the caller's bounded retry.
func (r *ReservationRepository) UpdateState(ctx context.Context, id string, version int64, state domain.ReservationState, at time.Time) error {
	const stmt = `
UPDATE reservations
SET state = $3, last_transition_at = $4, version = version + 1
WHERE id = $1 AND version = $2`

	tag, err := r.q.exec(ctx, stmt, id, version, state, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update reservation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// Reactivate resets an expired reservation to a fresh draft hold with new
// expiry windows and a cleared released flag, in one conditional write.
func (r *ReservationRepository) Reactivate(ctx context.Context, id string, version int64, holdExpiresAt, totalWindowExpiresAt, at time.Time) error {
	const stmt = `
UPDATE reservations
SET state = $3, released = FALSE, hold_expires_at = $4,
	total_window_expires_at = $5, last_transition_at = $6, version = version + 1
WHERE id = $1 AND version = $2`

	tag, err := r.q.exec(ctx, stmt, id, version, domain.StateDraft, holdExpiresAt, totalWindowExpiresAt, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("reactivate reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// MarkReleased flips the released flag and reports whether this call did
// the flipping; only the caller that did owes the pool a decrement.
func (r *ReservationRepository) MarkReleased(ctx context.Context, id string) (bool, error) {
	const stmt = `UPDATE reservations SET released = TRUE WHERE id = $1 AND released = FALSE`

	tag, err := r.q.exec(ctx, stmt, id)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark released: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimExpired selects holds past their total window for the sweeper.
// SKIP LOCKED keeps concurrent sweeper instances off the same rows; the
// version check in UpdateState remains the actual correctness guard.
func (r *ReservationRepository) ClaimExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE state = $1 AND total_window_expires_at <= $2
ORDER BY total_window_expires_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED`

	rows, err := r.q.query(ctx, query, domain.StateAwaitingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim expired reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

func (r *ReservationRepository) missingOrConflict(ctx context.Context, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`
	var exists bool
	if err := r.q.queryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check reservation: %w", err)
	}
	if !exists {
		return domain.ErrReservationNotFound
	}
	return domain.ErrConcurrencyConflict
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var state string
	err := row.Scan(
		&res.ID,
		&res.PoolID,
		&res.RequesterID,
		&state,
		&res.UnitsHeld,
		&res.TrackingCode,
		&res.Released,
		&res.CreatedAt,
		&res.HoldExpiresAt,
		&res.TotalWindowExpiresAt,
		&res.LastTransitionAt,
		&res.Version,
	)
	res.State = domain.ReservationState(state)
	return res, err
}
