package booking

import "time"

// Kafka topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// CloudEvent types produced on TopicBookingEvents.
const (
	EventBookingCreated        = "booking.created"
	EventBookingStatusChanged  = "booking.status_changed"
	EventBookingPaymentSettled = "booking.payment_settled"
)

// CloudEvent types consumed from TopicPaymentEvents.
const (
	EventPaymentSettled = "payment.settled"
)

// CreatedEvent is published when a client creates a booking.
type CreatedEvent struct {
	BookingID     uint64    `json:"booking_id"`
	ClientID      uint64    `json:"client_id"`
	CarerID       uint64    `json:"carer_id"`
	ServiceType   string    `json:"service_type"`
	ScheduledDate string    `json:"scheduled_date"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// StatusChangedEvent is published after every committed status change.
type StatusChangedEvent struct {
	BookingID      uint64    `json:"booking_id"`
	ClientID       uint64    `json:"client_id"`
	CarerID        uint64    `json:"carer_id"`
	Status         string    `json:"status"`
	TotalCostPence *int64    `json:"total_cost_pence,omitempty"`
	Currency       string    `json:"currency"`
	AdminOverride  bool      `json:"admin_override"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentSettledEvent is published once per booking when payment settles.
type PaymentSettledEvent struct {
	BookingID   uint64    `json:"booking_id"`
	Reference   string    `json:"reference"`
	AmountPence int64     `json:"amount_pence"`
	Currency    string    `json:"currency"`
	Source      string    `json:"source"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ExternalPaymentSettled is the payload other services publish on TopicPaymentEvents.
// AmountPence is optional; when absent the booking's computed charge is recorded.
type ExternalPaymentSettled struct {
	BookingID   uint64 `json:"booking_id"`
	Reference   string `json:"reference"`
	AmountPence int64  `json:"amount_pence,omitempty"`
}
