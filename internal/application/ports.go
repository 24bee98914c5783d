package application

import (
	"context"

	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/platform/kafka"
)

// EventProducer publishes CloudEvents. *kafka.Producer satisfies it.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// RealtimePublisher fans events out to live sessions. *realtime.Broadcaster satisfies it.
type RealtimePublisher interface {
	Publish(event string, payload interface{}) (int, error)
	PublishTo(ref party.Ref, event string, payload interface{}) (int, error)
}

// NoopProducer discards events. It is wired when no Kafka brokers are configured.
type NoopProducer struct{}

// PublishEvent implements EventProducer.
func (NoopProducer) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }
