package app

import (
	"strings"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// newTrackingCode derives the short, externally shown code from a fresh
// UUID. Uniqueness is enforced by the reservations table.
func newTrackingCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "RSV-" + strings.ToUpper(raw[:10])
}
