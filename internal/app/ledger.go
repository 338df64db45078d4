package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// PoolRepository is the persistence contract for capacity pools. The
// update is a single conditional write against the version read: when the
// stored version no longer matches it must return
// domain.ErrConcurrencyConflict without applying anything.
type PoolRepository interface {
	GetPool(ctx context.Context, id string) (domain.CapacityPool, error)
	UpdateAllocation(ctx context.Context, id string, version int64, allocated int) error
	ListPoolsByTour(ctx context.Context, tourID string) ([]domain.CapacityPool, error)
}

const defaultReserveRetries = 3

// Ledger owns the allocated <= max invariant per pool. It is stateless:
// no in-memory counter is authoritative, every mutation is a
// compare-and-swap through the repository, so correctness holds across
// process instances.
type Ledger struct {
	pools   PoolRepository
	log     *slog.Logger
	retries int
}

type LedgerOption func(*Ledger)

// WithReserveRetries overrides the bounded retry count used when a
// conditional write loses to a concurrent writer.
func WithReserveRetries(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.retries = n
		}
	}
}

func NewLedger(pools PoolRepository, log *slog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		pools:   pools,
		log:     log,
		retries: defaultReserveRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryReserve conditionally adds units to the pool's allocation. It fails
// with domain.ErrCapacityExhausted when the pool cannot fit the request
// and with domain.ErrConcurrencyConflict when the bounded retries are
// exhausted; the latter is transient and safe to retry with the same
// idempotency key.
func (l *Ledger) TryReserve(ctx context.Context, poolID string, units int) error {
	if units < 1 {
		return domain.ErrInvalidUnits
	}

	var lastErr error
	for attempt := 0; attempt < l.retries; attempt++ {
		pool, err := l.pools.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.AllocatedUnits+units > pool.MaxUnits {
			return domain.ErrCapacityExhausted
		}

		err = l.pools.UpdateAllocation(ctx, poolID, pool.Version, pool.AllocatedUnits+units)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("reserve %d units on pool %s: %w", units, poolID, lastErr)
}

// Release conditionally subtracts units. Decrement past zero means the
// release bookkeeping is broken somewhere; that is surfaced as an
// invariant violation and logged at error level, never clamped away.
func (l *Ledger) Release(ctx context.Context, poolID string, units int) error {
	if units < 1 {
		return domain.ErrInvalidUnits
	}

	var lastErr error
	for attempt := 0; attempt < l.retries; attempt++ {
		pool, err := l.pools.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		if pool.AllocatedUnits-units < 0 {
			l.log.Error("capacity release past zero",
				"pool_id", poolID,
				"allocated", pool.AllocatedUnits,
				"units", units,
			)
			return domain.ErrReleasePastZero
		}

		err = l.pools.UpdateAllocation(ctx, poolID, pool.Version, pool.AllocatedUnits-units)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("release %d units on pool %s: %w", units, poolID, lastErr)
}

// Stats returns the utilization view of a single pool.
func (l *Ledger) Stats(ctx context.Context, poolID string) (domain.PoolStats, error) {
	pool, err := l.pools.GetPool(ctx, poolID)
	if err != nil {
		return domain.PoolStats{}, err
	}
	return pool.Stats(), nil
}
