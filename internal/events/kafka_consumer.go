package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/application"
	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/platform/kafka"
)

// Settler records a booking payment. *application.SettlementService satisfies it.
type Settler interface {
	Settle(ctx context.Context, bookingID uint64, reference string, captured bookingDomain.Money, source bookingDomain.SettlementSource) (*application.SettlementResultDTO, error)
}

// PaymentEventConsumer listens to payment events and settles the bookings they name.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	settler  Settler
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	settler Settler,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, bookingDomain.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		settler:  settler,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Run starts consuming on its own goroutine. The returned channel is closed once
// the consumer has stopped, after which no further settlements are started.
func (c *PaymentEventConsumer) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.logger.Info("starting payment event consumer")
		if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("payment event consumer error", zap.Error(err))
		}
	}()
	return done
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case bookingDomain.EventPaymentSettled:
		return c.handlePaymentSettled(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentSettled(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt bookingDomain.ExternalPaymentSettled
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == 0 {
		c.logger.Error("failed to parse payment settled data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing payment settled event",
		zap.Uint64("booking_id", evt.BookingID),
		zap.String("reference", evt.Reference),
		zap.Int64("amount_pence", evt.AmountPence),
	)

	res, err := c.settler.Settle(ctx, evt.BookingID, evt.Reference, bookingDomain.Money(evt.AmountPence), bookingDomain.SourceEvent)
	if err != nil {
		c.logger.Error("failed to settle booking from payment event",
			zap.Uint64("booking_id", evt.BookingID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("payment event handled",
		zap.Uint64("booking_id", evt.BookingID),
		zap.Bool("settled", res.Settled),
	)
	return nil
}
