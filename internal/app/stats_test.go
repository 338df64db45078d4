package app

import (
	"context"
	"errors"
	"testing"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

func TestStatsService_PoolStats(t *testing.T) {
	t.Parallel()

	repo := newFakePoolRepo(domain.CapacityPool{ID: "p1", TourID: "t1", MaxUnits: 40, AllocatedUnits: 30})
	svc := NewStatsService(repo)

	stats, err := svc.PoolStats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.RemainingUnits != 10 {
		t.Fatalf("expected 10 remaining, got %d", stats.RemainingUnits)
	}
	if stats.UtilizationPercent != 75 {
		t.Fatalf("expected 75%%, got %v", stats.UtilizationPercent)
	}

	if _, err := svc.PoolStats(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsService_TourStats(t *testing.T) {
	t.Parallel()

	repo := newFakePoolRepo(
		domain.CapacityPool{ID: "pub", TourID: "t1", MaxUnits: 30, AllocatedUnits: 15},
		domain.CapacityPool{ID: "res", TourID: "t1", MaxUnits: 10, AllocatedUnits: 10, IsRestricted: true},
		domain.CapacityPool{ID: "other", TourID: "t2", MaxUnits: 100, AllocatedUnits: 1},
	)
	svc := NewStatsService(repo)

	t.Run("public scope excludes restricted pools", func(t *testing.T) {
		stats, err := svc.TourStats(context.Background(), "t1", ScopePublic)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.MaxUnits != 30 || stats.AllocatedUnits != 15 {
			t.Fatalf("unexpected public stats: %+v", stats)
		}
	})

	t.Run("restricted scope excludes public pools", func(t *testing.T) {
		stats, err := svc.TourStats(context.Background(), "t1", ScopeRestricted)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.MaxUnits != 10 || stats.UtilizationPercent != 100 {
			t.Fatalf("unexpected restricted stats: %+v", stats)
		}
	})

	t.Run("requires a tour id", func(t *testing.T) {
		if _, err := svc.TourStats(context.Background(), "", ScopePublic); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
