package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publishes lifecycle notifications to a topic, keyed by
// reservation id so all notifications for one reservation stay ordered
// within a partition.
type KafkaPublisher struct {
	writer Writer
	topic  string
}

func NewKafkaPublisher(writer Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n domain.LifecycleNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(n.ReservationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "notification_type", Value: []byte(n.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", n.Type, err)
	}
	return nil
}
