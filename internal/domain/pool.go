package domain

// CapacityPool tracks a finite seat allotment for a tour. AllocatedUnits
// never exceeds MaxUnits and never goes negative; every mutation is a
// compare-and-swap against Version, so the invariant holds for every read
// any caller ever observes, not just eventually.
type CapacityPool struct {
	ID             string
	TourID         string
	Name           string
	MaxUnits       int
	AllocatedUnits int
	IsRestricted   bool
	Version        int64
}

func (p CapacityPool) Remaining() int {
	return p.MaxUnits - p.AllocatedUnits
}

// PoolStats is the read-only utilization view of one or more pools.
type PoolStats struct {
	MaxUnits           int
	AllocatedUnits     int
	RemainingUnits     int
	UtilizationPercent float64
}

func (p CapacityPool) Stats() PoolStats {
	return NewPoolStats(p.MaxUnits, p.AllocatedUnits)
}

func NewPoolStats(max, allocated int) PoolStats {
	s := PoolStats{
		MaxUnits:       max,
		AllocatedUnits: allocated,
		RemainingUnits: max - allocated,
	}
	if max > 0 {
		s.UtilizationPercent = float64(allocated) / float64(max) * 100
	}
	return s
}
