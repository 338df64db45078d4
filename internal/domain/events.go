package domain

import "time"

// NotificationType names the lifecycle notifications the core emits for
// downstream messaging systems. The core emits but never delivers them.
type NotificationType string

const (
	NotificationHoldCreated            NotificationType = "reservation.hold_created"
	NotificationHoldExpired            NotificationType = "reservation.hold_expired"
	NotificationReservationConfirmed   NotificationType = "reservation.confirmed"
	NotificationReservationReactivated NotificationType = "reservation.reactivated"
	NotificationReservationCancelled   NotificationType = "reservation.cancelled"
)

// LifecycleNotification is the payload published on every reservation
// state change of external interest.
type LifecycleNotification struct {
	Type          NotificationType `json:"type"`
	ReservationID string           `json:"reservation_id"`
	PoolID        string           `json:"pool_id"`
	RequesterID   string           `json:"requester_id"`
	TrackingCode  string           `json:"tracking_code"`
	Units         int              `json:"units"`
	State         ReservationState `json:"state"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func NewLifecycleNotification(t NotificationType, r Reservation, reason string, at time.Time) LifecycleNotification {
	return LifecycleNotification{
		Type:          t,
		ReservationID: r.ID,
		PoolID:        r.PoolID,
		RequesterID:   r.RequesterID,
		TrackingCode:  r.TrackingCode,
		Units:         r.UnitsHeld,
		State:         r.State,
		Reason:        reason,
		OccurredAt:    at,
	}
}
