// Package billing informs the billing system that a hold needs a payable
// bill. Payment results come back through the confirm endpoint; nothing
// here waits on the gateway.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
	"github.com/akbaramd/nezam-refahi-reservations/internal/events"
)

// Nop is used when no billing transport is configured.
type Nop struct{}

func (Nop) IssueBill(context.Context, domain.Reservation) error { return nil }

type billRequest struct {
	ReservationID string    `json:"reservation_id"`
	RequesterID   string    `json:"requester_id"`
	TrackingCode  string    `json:"tracking_code"`
	Units         int       `json:"units"`
	PayBy         time.Time `json:"pay_by"`
}

// KafkaIssuer publishes bill requests for the billing service to consume.
type KafkaIssuer struct {
	writer events.Writer
	topic  string
}

func NewKafkaIssuer(writer events.Writer, topic string) *KafkaIssuer {
	return &KafkaIssuer{writer: writer, topic: topic}
}

func (k *KafkaIssuer) IssueBill(ctx context.Context, res domain.Reservation) error {
	payload, err := json.Marshal(billRequest{
		ReservationID: res.ID,
		RequesterID:   res.RequesterID,
		TrackingCode:  res.TrackingCode,
		Units:         res.UnitsHeld,
		PayBy:         res.TotalWindowExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode bill request: %w", err)
	}
	msg := kafka.Message{
		Topic: k.topic,
		Key:   []byte(res.ID),
		Value: payload,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish bill request: %w", err)
	}
	return nil
}
