package domain

import "time"

// Tour is a bookable trip whose seats are tracked by capacity pools.
type Tour struct {
	ID       string
	Name     string
	StartsAt time.Time
}
