package app

import (
	"context"
	"sync"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// fakePoolRepo emulates the persistence collaborator's conditional write:
// the update applies only while the stored version matches, exactly like
// the SQL row CAS.
type fakePoolRepo struct {
	mu      sync.Mutex
	pools   map[string]domain.CapacityPool
	writes  int
	failGet error
}

func newFakePoolRepo(pools ...domain.CapacityPool) *fakePoolRepo {
	m := make(map[string]domain.CapacityPool, len(pools))
	for _, p := range pools {
		if p.Version == 0 {
			p.Version = 1
		}
		m[p.ID] = p
	}
	return &fakePoolRepo{pools: m}
}

func (f *fakePoolRepo) GetPool(_ context.Context, id string) (domain.CapacityPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return domain.CapacityPool{}, f.failGet
	}
	p, ok := f.pools[id]
	if !ok {
		return domain.CapacityPool{}, domain.ErrPoolNotFound
	}
	return p, nil
}

func (f *fakePoolRepo) UpdateAllocation(_ context.Context, id string, version int64, allocated int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[id]
	if !ok {
		return domain.ErrPoolNotFound
	}
	if p.Version != version {
		return domain.ErrConcurrencyConflict
	}
	p.AllocatedUnits = allocated
	p.Version++
	f.pools[id] = p
	f.writes++
	return nil
}

func (f *fakePoolRepo) ListPoolsByTour(_ context.Context, tourID string) ([]domain.CapacityPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CapacityPool
	for _, p := range f.pools {
		if p.TourID == tourID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePoolRepo) allocated(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[id].AllocatedUnits
}

type fakeReservationRepo struct {
	mu   sync.Mutex
	recs map[string]domain.Reservation
}

func newFakeReservationRepo(recs ...domain.Reservation) *fakeReservationRepo {
	m := make(map[string]domain.Reservation, len(recs))
	for _, r := range recs {
		if r.Version == 0 {
			r.Version = 1
		}
		m[r.ID] = r
	}
	return &fakeReservationRepo{recs: m}
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeReservationRepo) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeReservationRepo) CreateReservation(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[r.ID] = r
	return nil
}

func (f *fakeReservationRepo) UpdateState(_ context.Context, id string, version int64, state domain.ReservationState, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if r.Version != version {
		return domain.ErrConcurrencyConflict
	}
	r.State = state
	r.LastTransitionAt = at
	r.Version++
	f.recs[id] = r
	return nil
}

func (f *fakeReservationRepo) Reactivate(_ context.Context, id string, version int64, holdExpiresAt, totalWindowExpiresAt, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if r.Version != version {
		return domain.ErrConcurrencyConflict
	}
	r.State = domain.StateDraft
	r.Released = false
	r.HoldExpiresAt = holdExpiresAt
	r.TotalWindowExpiresAt = totalWindowExpiresAt
	r.LastTransitionAt = at
	r.Version++
	f.recs[id] = r
	return nil
}

func (f *fakeReservationRepo) MarkReleased(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return false, domain.ErrReservationNotFound
	}
	if r.Released {
		return false, nil
	}
	r.Released = true
	f.recs[id] = r
	return true, nil
}

func (f *fakeReservationRepo) ClaimExpired(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.recs {
		if r.State == domain.StateAwaitingPayment && !r.TotalWindowExpiresAt.After(now) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) get(id string) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[id]
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []domain.LifecycleNotification
}

func (p *recordingPublisher) Publish(_ context.Context, n domain.LifecycleNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) types() []domain.NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.NotificationType, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Type)
	}
	return out
}

type recordingBilling struct {
	mu     sync.Mutex
	issued []string
	err    error
}

func (b *recordingBilling) IssueBill(_ context.Context, r domain.Reservation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.issued = append(b.issued, r.ID)
	return nil
}
