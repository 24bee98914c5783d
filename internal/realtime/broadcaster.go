package realtime

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/domain/party"
)

// Event names sent to live sessions.
const (
	EventBookingUpdated  = "booking-updated"
	EventBookingPaid     = "booking-paid"
	EventNewNotification = "new-notification"
)

// Envelope is the wire frame sent to sessions.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Broadcaster fans events out to registered sessions. Delivery is fire and
// forget: nothing is awaited or retried.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// Publish sends the event to every live session and returns how many accepted it.
func (b *Broadcaster) Publish(event string, payload interface{}) (int, error) {
	frame, err := encode(event, payload)
	if err != nil {
		return 0, err
	}
	delivered := 0
	b.registry.each(func(s *Session) {
		if s.offer(frame) {
			delivered++
		}
	})
	b.logger.Debug("realtime event published", zap.String("event", event), zap.Int("delivered", delivered))
	return delivered, nil
}

// PublishTo sends the event to ref's sessions only.
func (b *Broadcaster) PublishTo(ref party.Ref, event string, payload interface{}) (int, error) {
	frame, err := encode(event, payload)
	if err != nil {
		return 0, err
	}
	delivered := 0
	b.registry.eachOf(ref, func(s *Session) {
		if s.offer(frame) {
			delivered++
		}
	})
	b.logger.Debug("realtime event sent",
		zap.String("event", event),
		zap.Stringer("to", ref),
		zap.Int("delivered", delivered),
	)
	return delivered, nil
}

func encode(event string, payload interface{}) ([]byte, error) {
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	return frame, nil
}
