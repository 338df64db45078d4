package app

import (
	"context"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// StatsService serves read-only utilization views, scoped through the
// capacity policy so public and restricted figures never mix.
type StatsService struct {
	pools  PoolRepository
	policy SpecialCapacityPolicy
}

func NewStatsService(pools PoolRepository) *StatsService {
	return &StatsService{pools: pools}
}

func (s *StatsService) PoolStats(ctx context.Context, poolID string) (domain.PoolStats, error) {
	pool, err := s.pools.GetPool(ctx, poolID)
	if err != nil {
		return domain.PoolStats{}, err
	}
	return pool.Stats(), nil
}

func (s *StatsService) TourStats(ctx context.Context, tourID string, scope StatsScope) (domain.PoolStats, error) {
	if tourID == "" {
		return domain.PoolStats{}, domain.ErrInvalidID
	}
	pools, err := s.pools.ListPoolsByTour(ctx, tourID)
	if err != nil {
		return domain.PoolStats{}, err
	}
	return s.policy.ScopeStats(pools, scope), nil
}
