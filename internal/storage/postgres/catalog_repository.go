package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type CatalogRepository struct {
	q querier
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{q: querier{pool: pool}}
}

func (r *CatalogRepository) CreateTour(ctx context.Context, tour domain.Tour) error {
	const stmt = `
INSERT INTO tours (id, name, starts_at)
VALUES ($1, $2, $3)`
	_, err := r.q.exec(ctx, stmt, tour.ID, tour.Name, tour.StartsAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create tour: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListTours(ctx context.Context) ([]domain.Tour, error) {
	const query = `
SELECT id, name, starts_at
FROM tours
ORDER BY created_at ASC`
	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}
	defer rows.Close()

	var tours []domain.Tour
	for rows.Next() {
		var tour domain.Tour
		if err := rows.Scan(&tour.ID, &tour.Name, &tour.StartsAt); err != nil {
			return nil, fmt.Errorf("scan tour: %w", err)
		}
		tours = append(tours, tour)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate tours: %w", rows.Err())
	}
	return tours, nil
}

func (r *CatalogRepository) CreatePool(ctx context.Context, pool domain.CapacityPool) error {
	const stmt = `
INSERT INTO capacity_pools (id, tour_id, name, max_units, allocated_units, is_restricted, version)
VALUES ($1, $2, $3, $4, 0, $5, $6)`
	_, err := r.q.exec(ctx, stmt, pool.ID, pool.TourID, pool.Name, pool.MaxUnits, pool.IsRestricted, pool.Version)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrTourNotFound
		}
		return fmt.Errorf("create pool: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListPoolsByTour(ctx context.Context, tourID string) ([]domain.CapacityPool, error) {
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM tours WHERE id = $1)`
	var exists bool
	if err := r.q.queryRow(ctx, existsQuery, tourID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("check tour: %w", err)
	}
	if !exists {
		return nil, domain.ErrTourNotFound
	}

	const query = `
SELECT id, tour_id, name, max_units, allocated_units, is_restricted, version
FROM capacity_pools
WHERE tour_id = $1
ORDER BY created_at ASC`
	rows, err := r.q.query(ctx, query, tourID)
	if err != nil {
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
