package repository

import (
	"context"

	"EarnPull/internal/domain/models"
	drepo "EarnPull/internal/domain/repository"
)

// EventProducer is the slice of pkg/kafka.Producer the publisher needs.
type EventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher sends earnings changes keyed by ticker.
type KafkaEventPublisher struct {
	producer EventProducer
	topic    string
}

var _ drepo.Publisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer EventProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishChange(ctx context.Context, c models.EarningsChange) error {
	return p.producer.Publish(ctx, p.topic, []byte(c.Ticker), c)
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every change. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishChange(context.Context, models.EarningsChange) error { return nil }

func (NoopPublisher) Close() error { return nil }
