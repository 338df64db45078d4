// Package events carries lifecycle notifications out of the core. The
// core emits them; delivery to downstream consumers is someone else's
// problem, so publish failures are reported but never fail the operation
// that produced them.
package events

import (
	"context"
	"log/slog"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, n domain.LifecycleNotification) error
}

// Nop discards notifications; used in tests and when no broker is
// configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.LifecycleNotification) error { return nil }

// Logging writes notifications to the log instead of a broker.
type Logging struct {
	Log *slog.Logger
}

func (l Logging) Publish(_ context.Context, n domain.LifecycleNotification) error {
	l.Log.Info("lifecycle notification",
		"type", string(n.Type),
		"reservation_id", n.ReservationID,
		"pool_id", n.PoolID,
		"state", string(n.State),
	)
	return nil
}
