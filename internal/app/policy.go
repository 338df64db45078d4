package app

import "github.com/akbaramd/nezam-refahi-reservations/internal/domain"

// StatsScope selects which half of the public/restricted partition an
// aggregate view covers; the two are never mixed.
type StatsScope string

const (
	ScopePublic     StatsScope = "public"
	ScopeRestricted StatsScope = "restricted"
)

// SpecialCapacityPolicy partitions a tour's pools into public and
// restricted sub-allocations. Restricted pools exist for privileged
// requesters only; the policy gates reservation creation before any
// ledger mutation is attempted.
type SpecialCapacityPolicy struct{}

// CanAllocate reports whether the requester may hold units in the pool.
func (SpecialCapacityPolicy) CanAllocate(requesterPrivileged, poolRestricted bool) bool {
	return !poolRestricted || requesterPrivileged
}

// Filter returns the pools visible to the requester.
func (p SpecialCapacityPolicy) Filter(pools []domain.CapacityPool, requesterPrivileged bool) []domain.CapacityPool {
	visible := make([]domain.CapacityPool, 0, len(pools))
	for _, pool := range pools {
		if p.CanAllocate(requesterPrivileged, pool.IsRestricted) {
			visible = append(visible, pool)
		}
	}
	return visible
}

// ScopeStats aggregates utilization across the pools in scope only.
func (SpecialCapacityPolicy) ScopeStats(pools []domain.CapacityPool, scope StatsScope) domain.PoolStats {
	var max, allocated int
	for _, pool := range pools {
		if pool.IsRestricted != (scope == ScopeRestricted) {
			continue
		}
		max += pool.MaxUnits
		allocated += pool.AllocatedUnits
	}
	return domain.NewPoolStats(max, allocated)
}
