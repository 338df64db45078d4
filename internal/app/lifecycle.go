package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
	"github.com/akbaramd/nezam-refahi-reservations/internal/events"
	"github.com/akbaramd/nezam-refahi-reservations/internal/idempotency"
)

// ReservationRepository is the persistence contract for reservations.
// UpdateState and Reactivate are conditional writes against the version
// read and must return domain.ErrConcurrencyConflict on a stale version.
// MarkReleased flips the released flag and reports whether this call
// flipped it, so capacity release happens exactly once per reservation.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	UpdateState(ctx context.Context, id string, version int64, state domain.ReservationState, at time.Time) error
	Reactivate(ctx context.Context, id string, version int64, holdExpiresAt, totalWindowExpiresAt, at time.Time) error
	MarkReleased(ctx context.Context, id string) (bool, error)
}

// BillIssuer is the billing collaborator, informed when a hold is issued
// so it can create a payable bill. Payment completion re-enters the core
// through ConfirmReservation.
type BillIssuer interface {
	IssueBill(ctx context.Context, r domain.Reservation) error
}

// Operation kinds recorded with every idempotency key.
const (
	opCreate       = "create_reservation"
	opConfirm      = "confirm_reservation"
	opCancel       = "cancel_reservation"
	opSystemCancel = "system_cancel_reservation"
	opReactivate   = "reactivate_reservation"
	opExpire       = "expire_reservation"
)

const transitionRetries = 3

// Windows are the time boxes of a hold. The nominal hold expiry is
// CreatedAt + Hold; the sweeper only releases after the full
// Hold + CleanupGrace + PaymentCallbackGrace window, so a payment
// callback that arrives late but inside the window still confirms.
type Windows struct {
	Hold                 time.Duration
	CleanupGrace         time.Duration
	PaymentCallbackGrace time.Duration
}

func (w Windows) total() time.Duration {
	return w.Hold + w.CleanupGrace + w.PaymentCallbackGrace
}

// LifecycleService is the single code path that mutates reservation state
// and capacity. External triggers and the sweeper both enter here.
type LifecycleService struct {
	repo    ReservationRepository
	pools   PoolRepository
	ledger  *Ledger
	guard   *idempotency.Guard
	policy  SpecialCapacityPolicy
	billing BillIssuer
	events  events.Publisher
	clock   clock.Clock
	log     *slog.Logger
	windows Windows
}

func NewLifecycleService(
	repo ReservationRepository,
	pools PoolRepository,
	ledger *Ledger,
	guard *idempotency.Guard,
	billing BillIssuer,
	publisher events.Publisher,
	clk clock.Clock,
	log *slog.Logger,
	windows Windows,
) *LifecycleService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LifecycleService{
		repo:    repo,
		pools:   pools,
		ledger:  ledger,
		guard:   guard,
		billing: billing,
		events:  publisher,
		clock:   clk,
		log:     log,
		windows: windows,
	}
}

type CreateReservationInput struct {
	PoolID              string
	RequesterID         string
	Units               int
	RequesterPrivileged bool
	IdempotencyKey      string
}

// CreateReservation issues a time-boxed hold. A replayed idempotency key
// returns the stored reservation unchanged with no additional capacity
// mutation.
func (s *LifecycleService) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	if in.Units < 1 {
		return domain.Reservation{}, domain.ErrInvalidUnits
	}
	if in.PoolID == "" || in.RequesterID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	fp := idempotency.Fingerprint(in.PoolID, in.RequesterID, fmt.Sprint(in.Units))
	prior, err := s.guard.Begin(ctx, in.IdempotencyKey, opCreate, fp)
	if err != nil {
		return domain.Reservation{}, err
	}
	if prior != nil {
		return s.repo.GetReservation(ctx, prior.ResultID)
	}

	res, err := s.createReservation(ctx, in)
	if err != nil {
		s.abandon(ctx, in.IdempotencyKey)
		return domain.Reservation{}, err
	}

	if err := s.guard.Complete(ctx, in.IdempotencyKey, opCreate, fp, res.ID); err != nil {
		s.log.Warn("record idempotency result", "key", in.IdempotencyKey, "err", err)
	}
	return res, nil
}

func (s *LifecycleService) createReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	pool, err := s.pools.GetPool(ctx, in.PoolID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !s.policy.CanAllocate(in.RequesterPrivileged, pool.IsRestricted) {
		return domain.Reservation{}, domain.ErrRequesterNotEligible
	}

	if err := s.ledger.TryReserve(ctx, in.PoolID, in.Units); err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	tr, err := domain.Apply(domain.StateNone, domain.EventIssueHold)
	if err != nil {
		return domain.Reservation{}, err
	}
	res := domain.Reservation{
		ID:                   newID(),
		PoolID:               in.PoolID,
		RequesterID:          in.RequesterID,
		State:                tr.To,
		UnitsHeld:            in.Units,
		TrackingCode:         newTrackingCode(),
		CreatedAt:            now,
		HoldExpiresAt:        now.Add(s.windows.Hold),
		TotalWindowExpiresAt: now.Add(s.windows.total()),
		LastTransitionAt:     now,
		Version:              1,
	}

	if err := s.repo.CreateReservation(ctx, res); err != nil {
		// The hold never came into existence; hand the units back.
		if relErr := s.ledger.Release(ctx, in.PoolID, in.Units); relErr != nil {
			s.log.Error("compensating release failed", "pool_id", in.PoolID, "err", relErr)
		}
		return domain.Reservation{}, err
	}

	s.notifyBilling(ctx, res)

	res, err = s.advance(ctx, res, domain.EventMarkAwaitingPayment)
	if err != nil {
		return domain.Reservation{}, err
	}

	s.publish(ctx, domain.NotificationHoldCreated, res, "")
	return res, nil
}

// ConfirmReservation applies a payment confirmation. It succeeds any time
// the reservation is still AwaitingPayment, including after the nominal
// hold expiry but before the sweeper's total window elapses.
func (s *LifecycleService) ConfirmReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error) {
	fp := idempotency.Fingerprint(opConfirm, id)
	prior, err := s.guard.Begin(ctx, idempotencyKey, opConfirm, fp)
	if err != nil {
		return domain.Reservation{}, err
	}
	if prior != nil {
		return s.repo.GetReservation(ctx, prior.ResultID)
	}

	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	res, err = s.advance(ctx, res, domain.EventConfirmPayment)
	if err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	s.publish(ctx, domain.NotificationReservationConfirmed, res, "")
	if err := s.guard.Complete(ctx, idempotencyKey, opConfirm, fp, res.ID); err != nil {
		s.log.Warn("record idempotency result", "key", idempotencyKey, "err", err)
	}
	return res, nil
}

// CancelReservation cancels a non-terminal hold on the requester's
// behalf and releases its capacity exactly once. Cancelling a
// reservation that already reached a terminal released state is treated
// as success: the race loser must not surface an error.
func (s *LifecycleService) CancelReservation(ctx context.Context, id, reason, idempotencyKey string) (domain.Reservation, error) {
	return s.cancel(ctx, id, reason, idempotencyKey, domain.EventCancel, opCancel)
}

// SystemCancelReservation is the operator-initiated variant of cancel.
func (s *LifecycleService) SystemCancelReservation(ctx context.Context, id, reason, idempotencyKey string) (domain.Reservation, error) {
	return s.cancel(ctx, id, reason, idempotencyKey, domain.EventSystemCancel, opSystemCancel)
}

func (s *LifecycleService) cancel(ctx context.Context, id, reason, idempotencyKey string, event domain.ReservationEvent, op string) (domain.Reservation, error) {
	fp := idempotency.Fingerprint(op, id)
	prior, err := s.guard.Begin(ctx, idempotencyKey, op, fp)
	if err != nil {
		return domain.Reservation{}, err
	}
	if prior != nil {
		return s.repo.GetReservation(ctx, prior.ResultID)
	}

	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	res, err = s.advance(ctx, res, event)
	if err != nil {
		if released, ok := s.alreadyReleased(ctx, id, err); ok {
			// Expiration (or another cancel) won the race; the units are
			// already back, which is all a cancel asks for.
			_ = s.guard.Complete(ctx, idempotencyKey, op, fp, released.ID)
			return released, nil
		}
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	if err := s.releaseHeldUnits(ctx, &res); err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	s.publish(ctx, domain.NotificationReservationCancelled, res, reason)
	if err := s.guard.Complete(ctx, idempotencyKey, op, fp, res.ID); err != nil {
		s.log.Warn("record idempotency result", "key", idempotencyKey, "err", err)
	}
	return res, nil
}

// ExpireReservation drives a hold whose total allowed window has elapsed
// to Expired and releases its capacity. The sweeper is its only caller;
// its deterministic keys make a crashed-and-restarted sweep harmless.
func (s *LifecycleService) ExpireReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error) {
	fp := idempotency.Fingerprint(opExpire, id)
	prior, err := s.guard.Begin(ctx, idempotencyKey, opExpire, fp)
	if err != nil {
		return domain.Reservation{}, err
	}
	if prior != nil {
		return s.repo.GetReservation(ctx, prior.ResultID)
	}

	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	if s.clock.Now().Before(res.TotalWindowExpiresAt) {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, fmt.Errorf("%w: expire before total window elapsed", domain.ErrInvalidStateTransition)
	}

	res, err = s.advance(ctx, res, domain.EventExpireHold)
	if err != nil {
		if released, ok := s.alreadyReleased(ctx, id, err); ok {
			_ = s.guard.Complete(ctx, idempotencyKey, opExpire, fp, released.ID)
			return released, nil
		}
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	if err := s.releaseHeldUnits(ctx, &res); err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	s.publish(ctx, domain.NotificationHoldExpired, res, "")
	if err := s.guard.Complete(ctx, idempotencyKey, opExpire, fp, res.ID); err != nil {
		s.log.Warn("record idempotency result", "key", idempotencyKey, "err", err)
	}
	return res, nil
}

// ReactivateReservation resurrects an expired hold by re-running the
// capacity check. The pool may have filled up in the meantime; that
// surfaces as ErrCapacityExhausted, an expected recoverable outcome.
func (s *LifecycleService) ReactivateReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error) {
	fp := idempotency.Fingerprint(opReactivate, id)
	prior, err := s.guard.Begin(ctx, idempotencyKey, opReactivate, fp)
	if err != nil {
		return domain.Reservation{}, err
	}
	if prior != nil {
		return s.repo.GetReservation(ctx, prior.ResultID)
	}

	res, err := s.reactivate(ctx, id)
	if err != nil {
		s.abandon(ctx, idempotencyKey)
		return domain.Reservation{}, err
	}

	s.publish(ctx, domain.NotificationReservationReactivated, res, "")
	if err := s.guard.Complete(ctx, idempotencyKey, opReactivate, fp, res.ID); err != nil {
		s.log.Warn("record idempotency result", "key", idempotencyKey, "err", err)
	}
	return res, nil
}

func (s *LifecycleService) reactivate(ctx context.Context, id string) (domain.Reservation, error) {
	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if _, err := domain.Apply(res.State, domain.EventReactivate); err != nil {
		return domain.Reservation{}, err
	}

	if err := s.ledger.TryReserve(ctx, res.PoolID, res.UnitsHeld); err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	holdExpires := now.Add(s.windows.Hold)
	totalWindow := now.Add(s.windows.total())
	if err := s.repo.Reactivate(ctx, res.ID, res.Version, holdExpires, totalWindow, now); err != nil {
		// Lost the version race after re-reserving; hand the units back.
		if relErr := s.ledger.Release(ctx, res.PoolID, res.UnitsHeld); relErr != nil {
			s.log.Error("compensating release failed", "pool_id", res.PoolID, "err", relErr)
		}
		return domain.Reservation{}, err
	}

	res, err = s.repo.GetReservation(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyBilling(ctx, res)
	return s.advance(ctx, res, domain.EventMarkAwaitingPayment)
}

// advance applies one state-machine event with a bounded CAS retry. On a
// version conflict the reservation is re-read; if its state already equals
// the transition target another writer got there first and the result is
// taken as-is.
func (s *LifecycleService) advance(ctx context.Context, res domain.Reservation, event domain.ReservationEvent) (domain.Reservation, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		tr, err := domain.Apply(res.State, event)
		if err != nil {
			return domain.Reservation{}, err
		}

		now := s.clock.Now()
		err = s.repo.UpdateState(ctx, res.ID, res.Version, tr.To, now)
		if err == nil {
			res.State = tr.To
			res.LastTransitionAt = now
			res.Version++
			return res, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return domain.Reservation{}, err
		}

		res, err = s.repo.GetReservation(ctx, res.ID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if res.State == tr.To {
			return res, nil
		}
	}
	return domain.Reservation{}, fmt.Errorf("advance reservation %s: %w", res.ID, domain.ErrConcurrencyConflict)
}

// releaseHeldUnits gives the reservation's units back to its pool exactly
// once. The released flag and the pool decrement commit in one
// transaction, so a crash cannot double-release on retry, and a terminal
// reservation whose flag is still clear re-derives the owed release.
func (s *LifecycleService) releaseHeldUnits(ctx context.Context, res *domain.Reservation) error {
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		marked, err := s.repo.MarkReleased(txCtx, res.ID)
		if err != nil {
			return err
		}
		if !marked {
			return nil
		}
		return s.ledger.Release(txCtx, res.PoolID, res.UnitsHeld)
	})
	if err != nil {
		return err
	}
	res.Released = true
	return nil
}

// alreadyReleased inspects a failed transition: when the reservation
// reached a terminal state through a concurrent path, the loser treats it
// as success. A terminal reservation still owing its release (crash
// between transition and release) gets the release re-driven here.
func (s *LifecycleService) alreadyReleased(ctx context.Context, id string, cause error) (domain.Reservation, bool) {
	if !errors.Is(cause, domain.ErrInvalidStateTransition) && !errors.Is(cause, domain.ErrConcurrencyConflict) {
		return domain.Reservation{}, false
	}
	res, err := s.repo.GetReservation(ctx, id)
	if err != nil || !res.Terminal() || res.State == domain.StateConfirmed {
		return domain.Reservation{}, false
	}
	if !res.Released && res.State != domain.StateRejected {
		if err := s.releaseHeldUnits(ctx, &res); err != nil {
			s.log.Error("re-deriving owed release failed", "reservation_id", id, "err", err)
			return domain.Reservation{}, false
		}
	}
	return res, true
}

func (s *LifecycleService) notifyBilling(ctx context.Context, res domain.Reservation) {
	if s.billing == nil {
		return
	}
	// Billing failures never roll the hold back; the bill is re-issued
	// out of band and the sweeper bounds the damage.
	if err := s.billing.IssueBill(ctx, res); err != nil {
		s.log.Warn("issue bill", "reservation_id", res.ID, "err", err)
	}
}

func (s *LifecycleService) publish(ctx context.Context, t domain.NotificationType, res domain.Reservation, reason string) {
	n := domain.NewLifecycleNotification(t, res, reason, s.clock.Now())
	if err := s.events.Publish(ctx, n); err != nil {
		s.log.Warn("publish lifecycle notification", "type", string(t), "reservation_id", res.ID, "err", err)
	}
}

func (s *LifecycleService) abandon(ctx context.Context, key string) {
	if err := s.guard.Abandon(ctx, key); err != nil {
		s.log.Warn("abandon idempotency claim", "key", key, "err", err)
	}
}
