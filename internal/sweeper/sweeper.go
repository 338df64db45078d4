// Package sweeper reconciles time-based expiration independently of
// user-triggered requests. It finds holds whose total allowed window has
// elapsed and drives them through the same lifecycle entry point external
// triggers use; the version CAS there is what makes concurrent sweepers
// safe, the claim query only keeps them from scanning the same rows.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// Expirer is the lifecycle entry point the sweeper drives.
type Expirer interface {
	ExpireReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error)
}

// CandidateSource selects AwaitingPayment reservations past their total
// window, claimed so no other sweeper instance picks up the same batch.
type CandidateSource interface {
	ClaimExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
}

const defaultBatchSize = 100

type Sweeper struct {
	expirer     Expirer
	source      CandidateSource
	clock       clock.Clock
	log         *slog.Logger
	interval    time.Duration
	errInterval time.Duration
	batchSize   int
}

type Option func(*Sweeper)

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func New(expirer Expirer, source CandidateSource, clk clock.Clock, log *slog.Logger, interval, errInterval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		expirer:     expirer,
		source:      source,
		clock:       clk,
		log:         log,
		interval:    interval,
		errInterval: errInterval,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks, sweeping on the configured interval until the context is
// cancelled. A cycle-level failure (e.g. the database is unreachable)
// schedules the next cycle on the shorter error-retry interval.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	s.log.Info("sweeper started", "interval", s.interval, "error_retry_interval", s.errInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-timer.C:
		}

		next := s.interval
		expired, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("sweep cycle failed", "err", err)
			next = s.errInterval
		} else if expired > 0 {
			s.log.Info("sweep cycle complete", "expired", expired)
		}
		timer.Reset(next)
	}
}

// Sweep runs one cycle. Per-item failures are logged and skipped; only a
// failure to obtain candidates fails the cycle.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.source.ClaimExpired(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim expired reservations: %w", err)
	}

	expired := 0
	for _, res := range candidates {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.expirer.ExpireReservation(ctx, res.ID, ExpireKey(res)); err != nil {
			if errors.Is(err, domain.ErrInvalidStateTransition) {
				// Confirmed or cancelled between claim and expire; nothing to do.
				continue
			}
			s.log.Warn("expire reservation", "reservation_id", res.ID, "err", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// ExpireKey derives the sweeper's idempotency key deterministically from
// the reservation id and its last transition time, so a crashed and
// restarted cycle replays instead of double-releasing.
func ExpireKey(res domain.Reservation) string {
	return fmt.Sprintf("sweep:%s:%d", res.ID, res.LastTransitionAt.UTC().UnixNano())
}
