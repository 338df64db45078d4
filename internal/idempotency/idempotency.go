// Package idempotency deduplicates externally triggered operations using a
// caller-supplied key with a bounded TTL. A record is written before the
// operation runs (pending) and updated with the result afterwards, so a
// concurrent duplicate is rejected as transient while a completed replay
// returns the stored result without re-execution.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/clock"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Record is what the store keeps per key. Fingerprint hashes the logical
// arguments so a replay with different arguments is detected as a
// conflict instead of silently returning an unrelated result.
type Record struct {
	Key         string    `json:"key"`
	Operation   string    `json:"operation"`
	Fingerprint string    `json:"fingerprint"`
	Status      Status    `json:"status"`
	ResultID    string    `json:"result_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store is the external collaborator contract: get/set by key with TTL.
// Expired records are garbage-collected by the store itself.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	PutIfAbsent(ctx context.Context, rec Record, ttl time.Duration) (bool, error)
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, key string) error
}

// Guard wraps a Store with the begin/complete protocol used by every
// externally triggered lifecycle operation.
type Guard struct {
	store Store
	clock clock.Clock
	ttl   time.Duration
}

func NewGuard(store Store, clk clock.Clock, ttl time.Duration) *Guard {
	return &Guard{store: store, clock: clk, ttl: ttl}
}

// Begin claims the key for the given operation. It returns the completed
// record when the key was already executed with the same arguments (the
// caller must replay the stored result), or nil when the caller should
// proceed. An in-flight duplicate surfaces as ErrConcurrencyConflict and
// is safe to retry; an argument mismatch is ErrIdempotencyConflict.
func (g *Guard) Begin(ctx context.Context, key, operation, fingerprint string) (*Record, error) {
	if key == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}

	now := g.clock.Now()
	rec := Record{
		Key:         key,
		Operation:   operation,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.ttl),
	}

	created, err := g.store.PutIfAbsent(ctx, rec, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("idempotency put: %w", err)
	}
	if created {
		return nil, nil
	}

	existing, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	if existing == nil {
		// Record expired between the two calls; treat as transient.
		return nil, domain.ErrConcurrencyConflict
	}
	if existing.Operation != operation || existing.Fingerprint != fingerprint {
		return nil, domain.ErrIdempotencyConflict
	}
	if existing.Status == StatusPending {
		return nil, domain.ErrConcurrencyConflict
	}
	return existing, nil
}

// Complete records the operation result for later replays of the key.
func (g *Guard) Complete(ctx context.Context, key, operation, fingerprint, resultID string) error {
	now := g.clock.Now()
	rec := Record{
		Key:         key,
		Operation:   operation,
		Fingerprint: fingerprint,
		Status:      StatusCompleted,
		ResultID:    resultID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.ttl),
	}
	if err := g.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("idempotency update: %w", err)
	}
	return nil
}

// Abandon drops a pending claim after a failed operation so the caller
// can retry with the same key.
func (g *Guard) Abandon(ctx context.Context, key string) error {
	existing, err := g.store.Get(ctx, key)
	if err != nil || existing == nil || existing.Status != StatusPending {
		return err
	}
	return g.store.Delete(ctx, key)
}

// Fingerprint hashes the logical arguments of an operation.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
