package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/finmen/healcoin-wallet/internal/model"
)

// KafkaPublisher writes events keyed by user id, so one wallet's events land
// on one partition in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt model.OutboxEvent) error {
	return p.w.WriteMessages(ctx, message(evt))
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func message(evt model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: []byte(evt.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "aggregate", Value: []byte(evt.Aggregate)},
		},
		Time: evt.CreatedAt,
	}
}
