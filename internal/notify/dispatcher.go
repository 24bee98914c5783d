package notify

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
)

// Push payload type values understood by the mobile apps.
const (
	PushTypeNewBooking    = "new-booking"
	PushTypeBookingUpdate = "booking-updated"
)

// StatusChange describes a booking status change to notify the client about.
type StatusChange struct {
	BookingID   uint64
	Status      booking.BookingStatus
	ServiceType string
	Client      party.Contact
	CarerName   string
	TotalCost   *booking.Money
	AdminAction bool
}

// Dispatcher renders and sends booking notifications. Every method is best
// effort: errors are returned for the caller to log, never to act on.
type Dispatcher struct {
	email  EmailSender
	push   PushSender
	logger *zap.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(email EmailSender, push PushSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{email: email, push: push, logger: logger}
}

// EmailStatusChange emails the client about a status change.
func (d *Dispatcher) EmailStatusChange(ctx context.Context, change StatusChange) error {
	if change.Client.Email == "" {
		d.logger.Debug("client has no email address, skipping status email",
			zap.Uint64("booking_id", change.BookingID))
		return nil
	}

	data := statusEmailData{
		BookingID:   change.BookingID,
		ClientName:  change.Client.Name,
		CarerName:   change.CarerName,
		Status:      string(change.Status),
		ServiceType: change.ServiceType,
	}
	if change.Status == booking.StatusCompleted && change.TotalCost != nil {
		data.TotalCost = change.TotalCost.String()
	}

	text, html, err := renderStatusEmail(data)
	if err != nil {
		return err
	}
	return d.email.Send(ctx, Email{
		To:      change.Client.Email,
		Subject: statusSubject(string(change.Status), change.AdminAction),
		Text:    text,
		HTML:    html,
	})
}

// PushStatusChange pushes a status change to the client's device.
func (d *Dispatcher) PushStatusChange(ctx context.Context, change StatusChange) error {
	return d.Push(ctx, Push{
		Token: change.Client.PushToken,
		Title: "Booking " + string(change.Status),
		Body:  change.ServiceType + " with " + change.CarerName + " is now " + string(change.Status) + ".",
		Data: map[string]string{
			"booking_id": strconv.FormatUint(change.BookingID, 10),
			"status":     string(change.Status),
			"type":       PushTypeBookingUpdate,
		},
	})
}

// PushNewBooking tells the carer about a new booking request.
func (d *Dispatcher) PushNewBooking(ctx context.Context, carer party.Contact, bookingID uint64, serviceType, date string) error {
	return d.Push(ctx, Push{
		Token: carer.PushToken,
		Title: "📅 New Booking Request",
		Body:  "You have a new " + serviceType + " booking on " + date,
		Data: map[string]string{
			"booking_id": strconv.FormatUint(bookingID, 10),
			"type":       PushTypeNewBooking,
		},
	})
}

// Push sends msg unless the recipient has no device token, which is a skip and not an error.
func (d *Dispatcher) Push(ctx context.Context, msg Push) error {
	if msg.Token == "" {
		d.logger.Debug("recipient has no push token, skipping push",
			zap.String("title", msg.Title),
			zap.String("booking_id", msg.Data["booking_id"]),
		)
		return nil
	}
	return d.push.Send(ctx, msg)
}
