// Package events publishes out-of-band chat alerts (the input of push and
// e-mail notifiers, which live outside this service).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Alert announces a committed message to the users who should be interrupted
// by it. For the general room Recipients is empty and the consumer expands
// the tenant, skipping Excluded.
type Alert struct {
	RoomID     string    `json:"room_id"`
	RoomKind   string    `json:"room_kind"`
	TenantID   string    `json:"tenant_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Preview    string    `json:"preview"`
	Recipients []string  `json:"recipients,omitempty"`
	Excluded   []string  `json:"excluded,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher delivers alerts.
type Publisher interface {
	PublishAlert(ctx context.Context, a Alert) error
	Close() error
}

// KafkaPublisher writes alerts to a Kafka topic keyed by room, so alerts of
// one room stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher on topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishAlert(ctx context.Context, a Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(a.RoomID), Value: value, Time: a.SentAt}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Nop drops alerts. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishAlert(context.Context, Alert) error { return nil }
func (Nop) Close() error                              { return nil }
