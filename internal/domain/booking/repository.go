package booking

import (
	"context"
	"time"

	"github.com/reignacare/service-booking/internal/domain/notification"
)

// MutateFunc changes a booking loaded under a row lock. Returning an error
// aborts the surrounding transaction.
type MutateFunc func(b *Booking) error

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uint64) (*Booking, error)

	// FindByClientID retrieves bookings made by a client, newest first.
	FindByClientID(ctx context.Context, clientID uint64, page, limit int) ([]*Booking, int64, error)

	// FindByCarerID retrieves bookings assigned to a carer, newest first.
	FindByCarerID(ctx context.Context, carerID uint64, page, limit int) ([]*Booking, int64, error)

	// FindLatestByCarerID returns the carer's most recent booking, or nil when there is none.
	FindLatestByCarerID(ctx context.Context, carerID uint64) (*Booking, error)

	// FindPaidCompletedBetween returns the carer's completed and paid bookings
	// scheduled in [from, to).
	FindPaidCompletedBetween(ctx context.Context, carerID uint64, from, to time.Time) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Create persists a new booking and the carer notification it raises in one transaction.
	Create(ctx context.Context, booking *Booking, note *notification.Notification) error

	// Update loads the booking under a row lock, applies fn and writes the result,
	// together with any pending settlement, in one transaction.
	Update(ctx context.Context, id uint64, fn MutateFunc) (*Booking, error)
}
