package domain

import (
	"errors"
	"fmt"
)

// Base taxonomy. Handlers and callers branch on these with errors.Is;
// the finer-grained sentinels below wrap them.
var (
	ErrValidation             = errors.New("validation failed")
	ErrCapacityExhausted      = errors.New("capacity exhausted")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrNotFound               = errors.New("not found")
	ErrInvariantViolation     = errors.New("invariant violation")
)

var (
	ErrTourNotFound        = fmt.Errorf("tour %w", ErrNotFound)
	ErrPoolNotFound        = fmt.Errorf("capacity pool %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	ErrInvalidUnits           = fmt.Errorf("%w: units must be at least 1", ErrValidation)
	ErrInvalidCapacity        = fmt.Errorf("%w: max units must not be negative", ErrValidation)
	ErrTourNameRequired       = fmt.Errorf("%w: tour name required", ErrValidation)
	ErrPoolNameRequired       = fmt.Errorf("%w: pool name required", ErrValidation)
	ErrIdempotencyKeyRequired = fmt.Errorf("%w: idempotency key required", ErrValidation)
	ErrRequesterNotEligible   = fmt.Errorf("%w: requester not eligible for restricted pool", ErrValidation)
	ErrInvalidID              = fmt.Errorf("%w: invalid id", ErrValidation)

	// ErrIdempotencyConflict means a key was replayed with different
	// arguments, which is a caller bug rather than a retryable condition.
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrReleasePastZero indicates a capacity release that would drive
	// allocated units negative. Fatal: see ErrInvariantViolation.
	ErrReleasePastZero = fmt.Errorf("%w: release past zero", ErrInvariantViolation)
)
