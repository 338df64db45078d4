package domain

import "fmt"

// ReservationEvent drives the reservation state machine.
type ReservationEvent string

const (
	EventIssueHold           ReservationEvent = "issue_hold"
	EventMarkAwaitingPayment ReservationEvent = "mark_awaiting_payment"
	EventConfirmPayment      ReservationEvent = "confirm_payment"
	EventExpireHold          ReservationEvent = "expire_hold"
	EventReactivate          ReservationEvent = "reactivate"
	EventCancel              ReservationEvent = "cancel"
	EventSystemCancel        ReservationEvent = "system_cancel"
	EventReject              ReservationEvent = "reject"
)

// CapacityEffect describes what a transition requires from the ledger.
type CapacityEffect int

const (
	EffectNone CapacityEffect = iota
	EffectReserve
	EffectRelease
)

// Transition is the outcome of applying an event: the next state and the
// capacity side effect the caller must perform.
type Transition struct {
	To     ReservationState
	Effect CapacityEffect
}

// transitions is the full allowed-from table. Anything absent fails with
// ErrInvalidStateTransition and has no side effect. Time preconditions
// (ExpireHold only after the total window) are the caller's to check; the
// machine itself is pure over (state, event).
var transitions = map[ReservationState]map[ReservationEvent]Transition{
	StateNone: {
		EventIssueHold: {To: StateDraft, Effect: EffectReserve},
	},
	StateDraft: {
		EventMarkAwaitingPayment: {To: StateAwaitingPayment, Effect: EffectNone},
		EventCancel:              {To: StateCancelled, Effect: EffectRelease},
		EventSystemCancel:        {To: StateSystemCancelled, Effect: EffectRelease},
		EventReject:              {To: StateRejected, Effect: EffectNone},
	},
	StateAwaitingPayment: {
		EventConfirmPayment: {To: StateConfirmed, Effect: EffectNone},
		EventExpireHold:     {To: StateExpired, Effect: EffectRelease},
		EventCancel:         {To: StateCancelled, Effect: EffectRelease},
		EventSystemCancel:   {To: StateSystemCancelled, Effect: EffectRelease},
	},
	StateExpired: {
		EventReactivate: {To: StateDraft, Effect: EffectReserve},
	},
}

// Apply maps (state, event) to the resulting transition. It is total:
// every pair returns either a transition or ErrInvalidStateTransition.
func Apply(from ReservationState, event ReservationEvent) (Transition, error) {
	if tr, ok := transitions[from][event]; ok {
		return tr, nil
	}
	return Transition{}, fmt.Errorf("%w: %s from %q", ErrInvalidStateTransition, event, from)
}

// CanApply reports whether the event is allowed from the state.
func CanApply(from ReservationState, event ReservationEvent) bool {
	_, ok := transitions[from][event]
	return ok
}

// AllStates and AllEvents enumerate the machine's domain, including the
// not-yet-created pseudo-state.
func AllStates() []ReservationState {
	return []ReservationState{
		StateNone,
		StateDraft,
		StateAwaitingPayment,
		StateConfirmed,
		StateExpired,
		StateCancelled,
		StateSystemCancelled,
		StateRejected,
	}
}

func AllEvents() []ReservationEvent {
	return []ReservationEvent{
		EventIssueHold,
		EventMarkAwaitingPayment,
		EventConfirmPayment,
		EventExpireHold,
		EventReactivate,
		EventCancel,
		EventSystemCancel,
		EventReject,
	}
}
