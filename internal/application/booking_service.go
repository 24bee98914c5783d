package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/notification"
	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/notify"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/domain"
	"github.com/reignacare/service-booking/internal/platform/kafka"
	"github.com/reignacare/service-booking/internal/realtime"
)

const (
	serviceName       = "service-booking"
	notificationLimit = 100
)

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo       bookingDomain.BookingRepository
	notes      notification.NotificationRepository
	parties    party.Directory
	pricing    bookingDomain.PricingStrategy
	dispatcher *notify.Dispatcher
	realtime   RealtimePublisher
	producer   EventProducer
	effects    *EffectRunner
	logger     *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	notes notification.NotificationRepository,
	parties party.Directory,
	pricing bookingDomain.PricingStrategy,
	dispatcher *notify.Dispatcher,
	realtime RealtimePublisher,
	producer EventProducer,
	effects *EffectRunner,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:       repo,
		notes:      notes,
		parties:    parties,
		pricing:    pricing,
		dispatcher: dispatcher,
		realtime:   realtime,
		producer:   producer,
		effects:    effects,
		logger:     logger,
	}
}

// CreateBooking creates a pending booking and the carer's inbox notification.
func (s *BookingService) CreateBooking(ctx context.Context, clientID uint64, req CreateBookingRequest) (*BookingDTO, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.ScheduledDate))
	if err != nil {
		return nil, domain.NewValidationError("date must be formatted YYYY-MM-DD")
	}

	carer, err := s.parties.Carers.FindCarer(ctx, req.CarerID)
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(clientID, carer.ID, bookingDomain.Details{
		ServiceType:   req.ServiceType,
		ServiceHours:  req.ServiceHours,
		ScheduledDate: date,
		ScheduledTime: req.ScheduledTime,
		Location:      req.Location,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}

	note, err := notification.NewNotification(carer.ID, newBookingMessage(bk))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, bk, note); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Uint64("booking_id", bk.ID()),
		zap.Uint64("client_id", clientID),
		zap.Uint64("carer_id", carer.ID),
	)

	result := toBookingDTO(bk)
	s.afterCreate(ctx, bk, carer.Contact(), toNotificationDTO(note))
	return &result, nil
}

// Transition moves a booking one lifecycle step on behalf of its assigned carer.
func (s *BookingService) Transition(ctx context.Context, bookingID, carerID uint64, requested string) (*BookingDTO, error) {
	target := normalizeStatus(requested)

	bk, err := s.repo.Update(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := bk.AuthorizeCarer(carerID); err != nil {
			return err
		}
		if !bk.Status().CanTransitionTo(target) {
			return domain.NewInvalidTransitionError(string(bk.Status()), string(target))
		}
		rate, err := s.completionRate(ctx, bk, target)
		if err != nil {
			return err
		}
		return bk.TransitionTo(target, rate, s.pricing)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking status changed",
		zap.Uint64("booking_id", bk.ID()),
		zap.Uint64("carer_id", carerID),
		zap.String("status", string(bk.Status())),
	)

	result := toBookingDTO(bk)
	s.afterStatusChange(ctx, bk, result, false)
	return &result, nil
}

// OverrideStatus sets any recognised status on behalf of an admin.
func (s *BookingService) OverrideStatus(ctx context.Context, bookingID, adminID uint64, requested string) (*BookingDTO, error) {
	target := normalizeStatus(requested)

	var previous bookingDomain.BookingStatus
	bk, err := s.repo.Update(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		previous = bk.Status()
		var rate bookingDomain.Quantity
		if target.IsValid() && !bk.IsPaid() {
			r, err := s.completionRate(ctx, bk, target)
			if err != nil {
				return err
			}
			rate = r
		}
		return bk.Override(target, rate, s.pricing)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking status overridden by admin",
		zap.Uint64("booking_id", bk.ID()),
		zap.Uint64("admin_id", adminID),
		zap.String("from", string(previous)),
		zap.String("to", string(bk.Status())),
	)

	result := toBookingDTO(bk)
	s.afterStatusChange(ctx, bk, result, true)
	return &result, nil
}

// completionRate returns the carer's current rate when target completes the booking.
// A carer record that no longer exists prices the booking at zero.
func (s *BookingService) completionRate(ctx context.Context, bk *bookingDomain.Booking, target bookingDomain.BookingStatus) (bookingDomain.Quantity, error) {
	if target != bookingDomain.StatusCompleted {
		return bookingDomain.Quantity{}, nil
	}
	carer, err := s.parties.Carers.FindCarer(ctx, bk.CarerID())
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			s.logger.Warn("carer missing at completion, pricing at zero",
				zap.Uint64("booking_id", bk.ID()),
				zap.Uint64("carer_id", bk.CarerID()),
			)
			return bookingDomain.Quantity{}, nil
		}
		return bookingDomain.Quantity{}, fmt.Errorf("failed to load carer rate: %w", err)
	}
	if !carer.ChargeRate.IsSet() {
		s.logger.Warn("carer has no charge rate, pricing at zero",
			zap.Uint64("booking_id", bk.ID()),
			zap.Uint64("carer_id", bk.CarerID()),
		)
	}
	return carer.ChargeRate, nil
}

// GetBooking returns a booking visible to the actor.
func (s *BookingService) GetBooking(ctx context.Context, actor auth.Actor, bookingID uint64) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleCarer:
		if err := bk.AuthorizeCarer(actor.ID); err != nil {
			return nil, err
		}
	case auth.RoleClient:
		if err := bk.AuthorizeClient(actor.ID); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewForbiddenError("unknown role")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListClientBookings retrieves paginated bookings made by a client.
func (s *BookingService) ListClientBookings(ctx context.Context, clientID uint64, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByClientID(ctx, clientID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// ListCarerBookings retrieves paginated bookings assigned to a carer.
func (s *BookingService) ListCarerBookings(ctx context.Context, carerID uint64, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByCarerID(ctx, carerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// LatestCarerBooking returns the carer's newest booking, or nil when there is none.
func (s *BookingService) LatestCarerBooking(ctx context.Context, carerID uint64) (*BookingDTO, error) {
	bk, err := s.repo.FindLatestByCarerID(ctx, carerID)
	if err != nil || bk == nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// WeeklyEarnings totals the carer's completed and paid bookings scheduled in
// the Monday to Sunday week containing now.
func (s *BookingService) WeeklyEarnings(ctx context.Context, carerID uint64, now time.Time) (*WeeklyEarningsDTO, error) {
	start, end := weekBounds(now)
	bookings, err := s.repo.FindPaidCompletedBetween(ctx, carerID, start, end)
	if err != nil {
		return nil, err
	}

	var total bookingDomain.Money
	for _, bk := range bookings {
		if cost := bk.TotalCost(); cost != nil {
			total += *cost
		}
	}

	return &WeeklyEarningsDTO{
		TotalEarnings:      total.Pounds(),
		TotalEarningsPence: int64(total),
		Currency:           domain.CurrencyGBP,
		WeekStart:          start.Format(dateLayout),
		WeekEnd:            end.AddDate(0, 0, -1).Format(dateLayout),
		Count:              len(bookings),
		Bookings:           toBookingDTOs(bookings),
	}, nil
}

// ListCarerNotifications returns the carer's inbox, newest first.
func (s *BookingService) ListCarerNotifications(ctx context.Context, carerID uint64) ([]NotificationDTO, error) {
	notes, err := s.notes.FindByCarerID(ctx, carerID, notificationLimit)
	if err != nil {
		return nil, err
	}
	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNotificationDTO(n)
	}
	return dtos, nil
}

// UpdateCarerPushToken registers the carer's device for push messages.
func (s *BookingService) UpdateCarerPushToken(ctx context.Context, carerID uint64, token string) error {
	return s.parties.Carers.UpdateCarerPushToken(ctx, carerID, strings.TrimSpace(token))
}

// --- Admin methods ---

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	stats := &BookingStatsDTO{ByStatus: make(map[string]int64, len(counts))}
	for _, status := range bookingDomain.AllStatuses() {
		stats.ByStatus[string(status)] = 0
	}
	for status, c := range counts {
		stats.ByStatus[status] = c
		stats.TotalBookings += c
		if !bookingDomain.BookingStatus(status).IsTerminal() {
			stats.OpenBookings += c
		}
	}
	return stats, nil
}

// --- Side effects ---

func (s *BookingService) afterCreate(ctx context.Context, bk *bookingDomain.Booking, carer party.Contact, note NotificationDTO) {
	id := bk.ID()
	date := bk.ScheduledDate().Format(dateLayout)

	s.effects.Go(ctx, "push.new_booking", id, func(ctx context.Context) error {
		return s.dispatcher.PushNewBooking(ctx, carer, id, bk.ServiceType(), date)
	})
	s.effects.Go(ctx, "realtime.new_notification", id, func(context.Context) error {
		_, err := s.realtime.PublishTo(carer.Ref, realtime.EventNewNotification, note)
		return err
	})

	evt := bookingDomain.CreatedEvent{
		BookingID:     id,
		ClientID:      bk.ClientID(),
		CarerID:       bk.CarerID(),
		ServiceType:   bk.ServiceType(),
		ScheduledDate: date,
		OccurredAt:    time.Now().UTC(),
	}
	s.effects.Go(ctx, "kafka.booking_created", id, func(ctx context.Context) error {
		return publishEvent(ctx, s.producer, bookingDomain.EventBookingCreated, id, evt)
	})
}

func (s *BookingService) afterStatusChange(ctx context.Context, bk *bookingDomain.Booking, dto BookingDTO, admin bool) {
	id := bk.ID()
	change := notify.StatusChange{
		BookingID:   id,
		Status:      bk.Status(),
		ServiceType: bk.ServiceType(),
		TotalCost:   bk.TotalCost(),
		AdminAction: admin,
	}
	clientRef := party.ClientRef(bk.ClientID())
	carerRef := party.CarerRef(bk.CarerID())

	s.effects.Go(ctx, "email.status_changed", id, func(ctx context.Context) error {
		c, err := s.resolveChange(ctx, change, clientRef, carerRef)
		if err != nil {
			return err
		}
		return s.dispatcher.EmailStatusChange(ctx, c)
	})
	s.effects.Go(ctx, "push.status_changed", id, func(ctx context.Context) error {
		c, err := s.resolveChange(ctx, change, clientRef, carerRef)
		if err != nil {
			return err
		}
		return s.dispatcher.PushStatusChange(ctx, c)
	})
	s.effects.Go(ctx, "realtime.booking_updated", id, func(context.Context) error {
		_, err := s.realtime.Publish(realtime.EventBookingUpdated, dto)
		return err
	})

	evt := bookingDomain.StatusChangedEvent{
		BookingID:      id,
		ClientID:       bk.ClientID(),
		CarerID:        bk.CarerID(),
		Status:         string(bk.Status()),
		TotalCostPence: dto.TotalCostPence,
		Currency:       domain.CurrencyGBP,
		AdminOverride:  admin,
		OccurredAt:     time.Now().UTC(),
	}
	s.effects.Go(ctx, "kafka.status_changed", id, func(ctx context.Context) error {
		return publishEvent(ctx, s.producer, bookingDomain.EventBookingStatusChanged, id, evt)
	})
}

// resolveChange fills in the party details. A missing carer only blanks the name.
func (s *BookingService) resolveChange(ctx context.Context, change notify.StatusChange, clientRef, carerRef party.Ref) (notify.StatusChange, error) {
	client, err := s.parties.Resolve(ctx, clientRef)
	if err != nil {
		return change, fmt.Errorf("failed to resolve client: %w", err)
	}
	change.Client = client
	if carer, err := s.parties.Resolve(ctx, carerRef); err == nil {
		change.CarerName = carer.Name
	}
	return change, nil
}

func newBookingMessage(bk *bookingDomain.Booking) string {
	msg := fmt.Sprintf("New %s booking for %s", bk.ServiceType(), bk.ScheduledDate().Format(dateLayout))
	if bk.ScheduledTime() != "" {
		msg += " at " + bk.ScheduledTime()
	}
	return msg
}

func normalizeStatus(s string) bookingDomain.BookingStatus {
	return bookingDomain.BookingStatus(strings.ToLower(strings.TrimSpace(s)))
}

// weekBounds returns [Monday 00:00, next Monday 00:00) in UTC for the week containing now.
func weekBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func publishEvent(ctx context.Context, producer EventProducer, eventType string, bookingID uint64, data interface{}) error {
	cloudEvent, err := kafka.NewCloudEvent(serviceName, eventType, data)
	if err != nil {
		return err
	}
	cloudEvent.Subject = fmt.Sprintf("booking/%d", bookingID)
	return producer.PublishEvent(ctx, bookingDomain.TopicBookingEvents, cloudEvent)
}
