package domain

import "time"

type ReservationState string

const (
	// StateNone is the pseudo-state of a reservation that does not exist
	// yet; IssueHold is the only event valid from it.
	StateNone            ReservationState = ""
	StateDraft           ReservationState = "draft"
	StateAwaitingPayment ReservationState = "awaiting_payment"
	StateConfirmed       ReservationState = "confirmed"
	StateExpired         ReservationState = "expired"
	StateCancelled       ReservationState = "cancelled"
	StateSystemCancelled ReservationState = "system_cancelled"
	StateRejected        ReservationState = "rejected"
)

// Reservation is a hold on pool capacity moving through the purchase
// funnel. It owns exactly the units it allocated and is the only entity
// allowed to release them; Released guards that release so it happens at
// most once even across crash-and-retry.
type Reservation struct {
	ID          string
	PoolID      string
	RequesterID string
	State       ReservationState
	UnitsHeld   int

	// TrackingCode is the short code shown to the requester.
	TrackingCode string

	Released bool

	CreatedAt            time.Time
	HoldExpiresAt        time.Time
	TotalWindowExpiresAt time.Time
	LastTransitionAt     time.Time

	Version int64
}

// Terminal reports whether the reservation can no longer transition,
// except for Expired which may be reactivated.
func (r Reservation) Terminal() bool {
	switch r.State {
	case StateConfirmed, StateExpired, StateCancelled, StateSystemCancelled, StateRejected:
		return true
	}
	return false
}

// HoldsCapacity reports whether the reservation still has units allocated
// on its behalf.
func (r Reservation) HoldsCapacity() bool {
	if r.State == StateConfirmed {
		return true
	}
	return !r.Terminal() && !r.Released
}
