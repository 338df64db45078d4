package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// PoolRepository persists capacity pools. UpdateAllocation is the single
// conditional write the ledger's compare-and-swap relies on.
type PoolRepository struct {
	q querier
}

func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{q: querier{pool: pool}}
}

func (r *PoolRepository) GetPool(ctx context.Context, id string) (domain.CapacityPool, error) {
	const query = `
SELECT id, tour_id, name, max_units, allocated_units, is_restricted, version
FROM capacity_pools
WHERE id = $1`

	var p domain.CapacityPool
	err := r.q.queryRow(ctx, query, id).
		Scan(&p.ID, &p.TourID, &p.Name, &p.MaxUnits, &p.AllocatedUnits, &p.IsRestricted, &p.Version)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CapacityPool{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CapacityPool{}, domain.ErrPoolNotFound
		}
		return domain.CapacityPool{}, fmt.Errorf("get pool: %w", err)
	}
	return p, nil
}

// UpdateAllocation applies the new allocation only while the stored
// version still matches the one the caller read. The allocated <= max
// check is enforced again by the table constraint, so even a buggy caller
// cannot commit an oversold pool.
func (r *PoolRepository) UpdateAllocation(ctx context.Context, id string, version int64, allocated int) error {
	const stmt = `
UPDATE capacity_pools
SET allocated_units = $3, version = version + 1
WHERE id = $1 AND version = $2`

	tag, err := r.q.exec(ctx, stmt, id, version, allocated)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update pool allocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (r *PoolRepository) ListPoolsByTour(ctx context.Context, tourID string) ([]domain.CapacityPool, error) {
	const query = `
SELECT id, tour_id, name, max_units, allocated_units, is_restricted, version
FROM capacity_pools
WHERE tour_id = $1
ORDER BY created_at ASC`

	rows, err := r.q.query(ctx, query, tourID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.CapacityPool
	for rows.Next() {
		var p domain.CapacityPool
		if err := rows.Scan(&p.ID, &p.TourID, &p.Name, &p.MaxUnits, &p.AllocatedUnits, &p.IsRestricted, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pools: %w", rows.Err())
	}
	return pools, nil
}
