package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

// UnknownLocation is stored when a booking is created without a location.
const UnknownLocation = "Unknown"

// MaxServiceHours caps a single booking at one week of continuous care.
const MaxServiceHours = 168

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id       uint64
	clientID uint64
	carerID  uint64

	serviceType   string
	serviceHours  Quantity
	scheduledDate time.Time
	scheduledTime string
	location      string
	notes         string

	status     BookingStatus
	totalCost  *Money
	hourlyRate Quantity

	paymentStatus    PaymentStatus
	paymentReference string
	settlement       *Settlement

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Details are the client supplied attributes of a new booking.
type Details struct {
	ServiceType   string
	ServiceHours  Quantity
	ScheduledDate time.Time
	ScheduledTime string
	Location      string
	Notes         string
}

// Settlement is the durable record written when a booking is marked paid.
type Settlement struct {
	BookingID uint64
	Reference string
	Amount    Money
	Currency  string
	Source    SettlementSource
	CreatedAt time.Time
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(clientID, carerID uint64, d Details) (*Booking, error) {
	if clientID == 0 {
		return nil, domain.NewValidationError("client ID is required")
	}
	if carerID == 0 {
		return nil, domain.NewValidationError("carer ID is required")
	}
	serviceType := strings.TrimSpace(d.ServiceType)
	if serviceType == "" {
		return nil, domain.NewValidationError("service type is required")
	}
	if d.ScheduledDate.IsZero() {
		return nil, domain.NewValidationError("scheduled date is required")
	}
	if d.ServiceHours.Float64() > MaxServiceHours {
		return nil, domain.NewValidationError(fmt.Sprintf("service hours must not exceed %d", MaxServiceHours))
	}
	location := strings.TrimSpace(d.Location)
	if location == "" {
		location = UnknownLocation
	}

	now := time.Now().UTC()
	return &Booking{
		clientID:      clientID,
		carerID:       carerID,
		serviceType:   serviceType,
		serviceHours:  d.ServiceHours,
		scheduledDate: d.ScheduledDate,
		scheduledTime: strings.TrimSpace(d.ScheduledTime),
		location:      location,
		notes:         d.Notes,
		status:        StatusPending,
		paymentStatus: PaymentPending,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Snapshot is the persisted form of a booking.
type Snapshot struct {
	ID               uint64
	ClientID         uint64
	CarerID          uint64
	ServiceType      string
	ServiceHours     Quantity
	ScheduledDate    time.Time
	ScheduledTime    string
	Location         string
	Notes            string
	Status           BookingStatus
	TotalCost        *Money
	HourlyRate       Quantity
	PaymentStatus    PaymentStatus
	PaymentReference string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s Snapshot) *Booking {
	return &Booking{
		id:               s.ID,
		clientID:         s.ClientID,
		carerID:          s.CarerID,
		serviceType:      s.ServiceType,
		serviceHours:     s.ServiceHours,
		scheduledDate:    s.ScheduledDate,
		scheduledTime:    s.ScheduledTime,
		location:         s.Location,
		notes:            s.Notes,
		status:           s.Status,
		totalCost:        s.TotalCost,
		hourlyRate:       s.HourlyRate,
		paymentStatus:    s.PaymentStatus,
		paymentReference: s.PaymentReference,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Snapshot returns the persisted form of the booking.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:               b.id,
		ClientID:         b.clientID,
		CarerID:          b.carerID,
		ServiceType:      b.serviceType,
		ServiceHours:     b.serviceHours,
		ScheduledDate:    b.scheduledDate,
		ScheduledTime:    b.scheduledTime,
		Location:         b.location,
		Notes:            b.notes,
		Status:           b.status,
		TotalCost:        b.totalCost,
		HourlyRate:       b.hourlyRate,
		PaymentStatus:    b.paymentStatus,
		PaymentReference: b.paymentReference,
		Version:          b.version,
		CreatedAt:        b.createdAt,
		UpdatedAt:        b.updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's identifier, zero until persisted.
func (b *Booking) ID() uint64 { return b.id }

// ClientID returns the requesting client's id.
func (b *Booking) ClientID() uint64 { return b.clientID }

// CarerID returns the assigned carer's id.
func (b *Booking) CarerID() uint64 { return b.carerID }

// ServiceType returns the requested service category.
func (b *Booking) ServiceType() string { return b.serviceType }

// ServiceHours returns the requested hours, possibly unset.
func (b *Booking) ServiceHours() Quantity { return b.serviceHours }

// ScheduledDate returns the day of the visit.
func (b *Booking) ScheduledDate() time.Time { return b.scheduledDate }

// ScheduledTime returns the free-text time of the visit.
func (b *Booking) ScheduledTime() string { return b.scheduledTime }

// Location returns where the service takes place.
func (b *Booking) Location() string { return b.location }

// Notes returns any additional notes for the booking.
func (b *Booking) Notes() string { return b.notes }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// PaymentStatus returns the settlement state.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// PaymentReference returns the processor reference of the settling payment.
func (b *Booking) PaymentReference() string { return b.paymentReference }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// TotalCost returns the cost fixed at completion, or nil before completion.
func (b *Booking) TotalCost() *Money { return b.totalCost }

// HourlyRate returns the carer rate captured at completion.
func (b *Booking) HourlyRate() Quantity { return b.hourlyRate }

// IsPaid reports whether payment has settled.
func (b *Booking) IsPaid() bool { return b.paymentStatus == PaymentPaid }

// PendingSettlement returns the settlement produced by MarkPaid that has not yet been persisted.
func (b *Booking) PendingSettlement() *Settlement { return b.settlement }

// --- Behavior ---

// AssignID records the database generated identifier of a new booking.
func (b *Booking) AssignID(id uint64) {
	if b.id == 0 {
		b.id = id
	}
}

// AuthorizeCarer fails with Forbidden unless carerID is the assigned carer.
func (b *Booking) AuthorizeCarer(carerID uint64) error {
	if carerID != b.carerID {
		return domain.NewForbiddenError("booking is not assigned to this carer")
	}
	return nil
}

// AuthorizeClient fails with Forbidden unless clientID made the booking.
func (b *Booking) AuthorizeClient(clientID uint64) error {
	if clientID != b.clientID {
		return domain.NewForbiddenError("booking does not belong to this client")
	}
	return nil
}

// TransitionTo moves the booking one step along the lifecycle. Completing the
// booking prices it with the carer's current rate.
func (b *Booking) TransitionTo(target BookingStatus, carerRate Quantity, pricing PricingStrategy) error {
	if !b.status.CanTransitionTo(target) {
		return domain.NewInvalidTransitionError(string(b.status), string(target))
	}
	b.apply(target, carerRate, pricing)
	return nil
}

// Override sets any recognised status regardless of the current one. Paid
// bookings are frozen.
func (b *Booking) Override(target BookingStatus, carerRate Quantity, pricing PricingStrategy) error {
	if !target.IsValid() {
		return domain.NewInvalidTransitionError(string(b.status), string(target))
	}
	if b.IsPaid() {
		return domain.NewInvalidStateError("booking already paid")
	}
	b.apply(target, carerRate, pricing)
	return nil
}

func (b *Booking) apply(target BookingStatus, carerRate Quantity, pricing PricingStrategy) {
	if target == StatusCompleted {
		cost := pricing.Calculate(PricingParams{Hours: b.serviceHours, Rate: carerRate})
		b.totalCost = &cost
		b.hourlyRate = carerRate
	} else {
		b.totalCost = nil
		b.hourlyRate = Quantity{}
	}
	b.status = target
	b.updatedAt = time.Now().UTC()
}

// ChargeAmount reprices the booking from its stored hours and rate snapshot.
func (b *Booking) ChargeAmount(pricing PricingStrategy) Money {
	return pricing.Calculate(PricingParams{Hours: b.serviceHours, Rate: b.hourlyRate})
}

// CheckChargeable reports whether a payment may be taken for the booking.
func (b *Booking) CheckChargeable() error {
	if b.status != StatusCompleted {
		return domain.NewInvalidStateError(fmt.Sprintf("booking is %s, payment requires completed", b.status))
	}
	if b.IsPaid() {
		return domain.NewConflictError("booking already paid")
	}
	return nil
}

// MarkPaid settles the booking exactly once. A second call fails with AlreadySettled.
func (b *Booking) MarkPaid(reference string, amount Money, currency string, source SettlementSource) error {
	if b.IsPaid() {
		return domain.NewAlreadySettledError(b.id)
	}
	now := time.Now().UTC()
	b.paymentStatus = PaymentPaid
	b.paymentReference = reference
	b.settlement = &Settlement{
		BookingID: b.id,
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Source:    source,
		CreatedAt: now,
	}
	b.updatedAt = now
	return nil
}

// MarkPaymentFailed records a failed charge attempt. Paid bookings are left untouched.
func (b *Booking) MarkPaymentFailed(reference string) error {
	if b.IsPaid() {
		return domain.NewAlreadySettledError(b.id)
	}
	b.paymentStatus = PaymentFailed
	if reference != "" {
		b.paymentReference = reference
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
