package application

import (
	"time"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/notification"
	"github.com/reignacare/service-booking/internal/platform/domain"
)

const dateLayout = "2006-01-02"

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	CarerID       uint64                 `json:"carer_id" binding:"required"`
	ServiceType   string                 `json:"service_type" binding:"required"`
	ServiceHours  bookingDomain.Quantity `json:"service_hours"`
	ScheduledDate string                 `json:"date" binding:"required"`
	ScheduledTime string                 `json:"time"`
	Location      string                 `json:"location"`
	Notes         string                 `json:"notes"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID               uint64                 `json:"id"`
	ClientID         uint64                 `json:"client_id"`
	CarerID          uint64                 `json:"carer_id"`
	ServiceType      string                 `json:"service_type"`
	ServiceHours     bookingDomain.Quantity `json:"service_hours"`
	ScheduledDate    string                 `json:"date"`
	ScheduledTime    string                 `json:"time"`
	Location         string                 `json:"location"`
	Notes            string                 `json:"notes,omitempty"`
	Status           string                 `json:"status"`
	TotalCost        *float64               `json:"total_cost"`
	TotalCostPence   *int64                 `json:"total_cost_pence"`
	HourlyRate       bookingDomain.Quantity `json:"hourly_rate"`
	Currency         string                 `json:"currency"`
	PaymentStatus    string                 `json:"payment_status"`
	PaymentReference string                 `json:"payment_reference,omitempty"`
	Version          int64                  `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// NotificationDTO is the response representation of a carer notification.
type NotificationDTO struct {
	ID        uint64    `json:"id"`
	CarerID   uint64    `json:"carer_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// WeeklyEarningsDTO summarises a carer's paid work for one Monday to Sunday week.
type WeeklyEarningsDTO struct {
	TotalEarnings      float64      `json:"total_earnings"`
	TotalEarningsPence int64        `json:"total_earnings_pence"`
	Currency           string       `json:"currency"`
	WeekStart          string       `json:"week_start"`
	WeekEnd            string       `json:"week_end"`
	Count              int          `json:"count"`
	Bookings           []BookingDTO `json:"bookings"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
// ByStatus carries every lifecycle status, zero when no booking has it.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	OpenBookings  int64            `json:"open_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	dto := BookingDTO{
		ID:               bk.ID(),
		ClientID:         bk.ClientID(),
		CarerID:          bk.CarerID(),
		ServiceType:      bk.ServiceType(),
		ServiceHours:     bk.ServiceHours(),
		ScheduledDate:    bk.ScheduledDate().Format(dateLayout),
		ScheduledTime:    bk.ScheduledTime(),
		Location:         bk.Location(),
		Notes:            bk.Notes(),
		Status:           string(bk.Status()),
		HourlyRate:       bk.HourlyRate(),
		Currency:         domain.CurrencyGBP,
		PaymentStatus:    string(bk.PaymentStatus()),
		PaymentReference: bk.PaymentReference(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
	if cost := bk.TotalCost(); cost != nil {
		pounds := cost.Pounds()
		pence := int64(*cost)
		dto.TotalCost = &pounds
		dto.TotalCostPence = &pence
	}
	return dto
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toNotificationDTO(n *notification.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID(),
		CarerID:   n.CarerID(),
		Message:   n.Message(),
		IsRead:    n.IsRead(),
		CreatedAt: n.CreatedAt(),
	}
}

// PaymentIntentDTO is returned to the client to confirm a card payment.
type PaymentIntentDTO struct {
	BookingID       uint64  `json:"booking_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Amount          float64 `json:"amount"`
	AmountPence     int64   `json:"amount_pence"`
	Currency        string  `json:"currency"`
}

// CheckoutSessionDTO points the client at a hosted checkout page.
type CheckoutSessionDTO struct {
	BookingID uint64 `json:"booking_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// SettlementResultDTO reports the outcome of a settlement attempt.
// Settled is false when the booking had already been paid.
type SettlementResultDTO struct {
	BookingID     uint64 `json:"booking_id"`
	Settled       bool   `json:"settled"`
	PaymentStatus string `json:"payment_status"`
	Reference     string `json:"reference,omitempty"`
}

// ConfirmPaymentRequest carries the intent the client completed on the device.
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// UpdateStatusRequest is the body of a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PushTokenRequest registers a device token. An empty token clears it.
type PushTokenRequest struct {
	Token string `json:"token"`
}
