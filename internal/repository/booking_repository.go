package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/notification"
	"github.com/reignacare/service-booking/internal/platform/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	ClientID         uint64    `gorm:"index;not null"`
	CarerID          uint64    `gorm:"index;not null"`
	ServiceType      string    `gorm:"not null;size:100"`
	ServiceHours     *float64  `gorm:"type:numeric(6,2)"`
	ScheduledDate    time.Time `gorm:"type:date;not null;index"`
	ScheduledTime    string    `gorm:"size:20"`
	Location         string    `gorm:"not null;size:255;default:'Unknown'"`
	Notes            string    `gorm:"size:2000"`
	Status           string    `gorm:"not null;size:20;index;default:'pending'"`
	TotalCostPence   *int64    `gorm:""`
	HourlyRate       *float64  `gorm:"type:numeric(8,2)"`
	PaymentStatus    string    `gorm:"not null;size:20;default:'pending'"`
	PaymentReference *string   `gorm:"size:255"`
	Version          int64     `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// PaymentSettlementModel records each booking's single settlement.
type PaymentSettlementModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	BookingID   uint64    `gorm:"uniqueIndex;not null"`
	Reference   string    `gorm:"not null;size:255"`
	AmountPence int64     `gorm:"not null"`
	Currency    string    `gorm:"not null;size:3"`
	Source      string    `gorm:"not null;size:20"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PaymentSettlementModel) TableName() string {
	return "payment_settlements"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uint64) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", strconv.FormatUint(id, 10))
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByClientID retrieves bookings for a specific client with pagination.
func (r *GormBookingRepository) FindByClientID(ctx context.Context, clientID uint64, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db.WithContext(ctx).Where("client_id = ?", clientID), page, limit)
}

// FindByCarerID retrieves bookings for a specific carer with pagination.
func (r *GormBookingRepository) FindByCarerID(ctx context.Context, carerID uint64, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db.WithContext(ctx).Where("carer_id = ?", carerID), page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(ctx, r.db.WithContext(ctx), page, limit)
}

func (r *GormBookingRepository) paginate(ctx context.Context, scope *gorm.DB, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindLatestByCarerID returns the carer's newest booking, or nil.
func (r *GormBookingRepository) FindLatestByCarerID(ctx context.Context, carerID uint64) (*bookingDomain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).
		Where("carer_id = ?", carerID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest carer booking: %w", err)
	}
	return toDomainBooking(&model)
}

// FindPaidCompletedBetween returns completed and paid bookings scheduled in [from, to).
func (r *GormBookingRepository) FindPaidCompletedBetween(ctx context.Context, carerID uint64, from, to time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("carer_id = ? AND status = ? AND payment_status = ?", carerID, bookingDomain.StatusCompleted, bookingDomain.PaymentPaid).
		Where("scheduled_date >= ? AND scheduled_date < ?", from, to).
		Order("scheduled_date ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find earnings bookings: %w", err)
	}
	return toDomainBookings(models)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Create persists a new booking and its carer notification in one transaction.
func (r *GormBookingRepository) Create(ctx context.Context, bk *bookingDomain.Booking, note *notification.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := toBookingModel(bk)
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		bk.AssignID(model.ID)

		if note == nil {
			return nil
		}
		noteModel := toNotificationModel(note)
		if err := tx.Create(noteModel).Error; err != nil {
			return fmt.Errorf("failed to save notification: %w", err)
		}
		note.AssignID(noteModel.ID)
		return nil
	})
}

// Update applies fn to the row-locked booking and persists the result.
// The version check guards writers that bypass the lock.
func (r *GormBookingRepository) Update(ctx context.Context, id uint64, fn bookingDomain.MutateFunc) (*bookingDomain.Booking, error) {
	var updated *bookingDomain.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current BookingModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("Booking", strconv.FormatUint(id, 10))
			}
			return fmt.Errorf("failed to lock booking: %w", err)
		}

		bk, err := toDomainBooking(&current)
		if err != nil {
			return err
		}
		if err := fn(bk); err != nil {
			return err
		}
		bk.IncrementVersion()

		model := toBookingModel(bk)
		result := tx.Model(&BookingModel{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(map[string]interface{}{
				"status":            model.Status,
				"total_cost_pence":  model.TotalCostPence,
				"hourly_rate":       model.HourlyRate,
				"payment_status":    model.PaymentStatus,
				"payment_reference": model.PaymentReference,
				"version":           model.Version,
				"updated_at":        model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConflictError("booking was modified by another transaction")
		}

		if s := bk.PendingSettlement(); s != nil {
			if err := tx.Create(toSettlementModel(s)).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.NewAlreadySettledError(id)
				}
				return fmt.Errorf("failed to record settlement: %w", err)
			}
		}

		updated = bk
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	s := bk.Snapshot()
	var totalCost *int64
	if s.TotalCost != nil {
		v := int64(*s.TotalCost)
		totalCost = &v
	}
	var reference *string
	if s.PaymentReference != "" {
		v := s.PaymentReference
		reference = &v
	}
	return &BookingModel{
		ID:               s.ID,
		ClientID:         s.ClientID,
		CarerID:          s.CarerID,
		ServiceType:      s.ServiceType,
		ServiceHours:     s.ServiceHours.Ptr(),
		ScheduledDate:    s.ScheduledDate,
		ScheduledTime:    s.ScheduledTime,
		Location:         s.Location,
		Notes:            s.Notes,
		Status:           string(s.Status),
		TotalCostPence:   totalCost,
		HourlyRate:       s.HourlyRate.Ptr(),
		PaymentStatus:    string(s.PaymentStatus),
		PaymentReference: reference,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	var totalCost *bookingDomain.Money
	if m.TotalCostPence != nil {
		v := bookingDomain.Money(*m.TotalCostPence)
		totalCost = &v
	}
	var reference string
	if m.PaymentReference != nil {
		reference = *m.PaymentReference
	}

	return bookingDomain.ReconstructBooking(bookingDomain.Snapshot{
		ID:               m.ID,
		ClientID:         m.ClientID,
		CarerID:          m.CarerID,
		ServiceType:      m.ServiceType,
		ServiceHours:     bookingDomain.QuantityFromPtr(m.ServiceHours),
		ScheduledDate:    m.ScheduledDate,
		ScheduledTime:    m.ScheduledTime,
		Location:         m.Location,
		Notes:            m.Notes,
		Status:           status,
		TotalCost:        totalCost,
		HourlyRate:       bookingDomain.QuantityFromPtr(m.HourlyRate),
		PaymentStatus:    paymentStatus,
		PaymentReference: reference,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

func toSettlementModel(s *bookingDomain.Settlement) *PaymentSettlementModel {
	return &PaymentSettlementModel{
		BookingID:   s.BookingID,
		Reference:   s.Reference,
		AmountPence: int64(s.Amount),
		Currency:    s.Currency,
		Source:      string(s.Source),
		CreatedAt:   s.CreatedAt,
	}
}
