package app

import (
	"context"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type CatalogRepository interface {
	CreateTour(ctx context.Context, tour domain.Tour) error
	ListTours(ctx context.Context) ([]domain.Tour, error)
	CreatePool(ctx context.Context, pool domain.CapacityPool) error
	ListPoolsByTour(ctx context.Context, tourID string) ([]domain.CapacityPool, error)
}

// CatalogService manages tours and their capacity pools.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateTourInput struct {
	Name     string
	StartsAt *time.Time
}

func (s *CatalogService) CreateTour(ctx context.Context, in CreateTourInput) (domain.Tour, error) {
	if in.Name == "" {
		return domain.Tour{}, domain.ErrTourNameRequired
	}
	startsAt := s.clock.Now()
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}

	tour := domain.Tour{
		ID:       newID(),
		Name:     in.Name,
		StartsAt: startsAt,
	}

	if err := s.repo.CreateTour(ctx, tour); err != nil {
		return domain.Tour{}, err
	}
	return tour, nil
}

func (s *CatalogService) ListTours(ctx context.Context) ([]domain.Tour, error) {
	return s.repo.ListTours(ctx)
}

type CreatePoolInput struct {
	TourID       string
	Name         string
	MaxUnits     int
	IsRestricted bool
}

func (s *CatalogService) CreatePool(ctx context.Context, in CreatePoolInput) (domain.CapacityPool, error) {
	if in.TourID == "" {
		return domain.CapacityPool{}, domain.ErrInvalidID
	}
	if in.Name == "" {
		return domain.CapacityPool{}, domain.ErrPoolNameRequired
	}
	if in.MaxUnits < 0 {
		return domain.CapacityPool{}, domain.ErrInvalidCapacity
	}

	pool := domain.CapacityPool{
		ID:           newID(),
		TourID:       in.TourID,
		Name:         in.Name,
		MaxUnits:     in.MaxUnits,
		IsRestricted: in.IsRestricted,
		Version:      1,
	}

	if err := s.repo.CreatePool(ctx, pool); err != nil {
		return domain.CapacityPool{}, err
	}
	return pool, nil
}

func (s *CatalogService) ListPools(ctx context.Context, tourID string) ([]domain.CapacityPool, error) {
	if tourID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListPoolsByTour(ctx, tourID)
}
