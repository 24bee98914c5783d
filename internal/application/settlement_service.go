package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/payment"
	"github.com/reignacare/service-booking/internal/platform/domain"
	"github.com/reignacare/service-booking/internal/realtime"
)

// SettlementService takes payments for completed bookings and records their settlement.
type SettlementService struct {
	repo     bookingDomain.BookingRepository
	parties  party.Directory
	pricing  bookingDomain.PricingStrategy
	gateway  payment.Gateway
	realtime RealtimePublisher
	producer EventProducer
	effects  *EffectRunner
	logger   *zap.Logger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	repo bookingDomain.BookingRepository,
	parties party.Directory,
	pricing bookingDomain.PricingStrategy,
	gateway payment.Gateway,
	realtime RealtimePublisher,
	producer EventProducer,
	effects *EffectRunner,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		repo:     repo,
		parties:  parties,
		pricing:  pricing,
		gateway:  gateway,
		realtime: realtime,
		producer: producer,
		effects:  effects,
		logger:   logger,
	}
}

// InitiatePayment creates a payment intent for the booking's computed amount.
func (s *SettlementService) InitiatePayment(ctx context.Context, bookingID, clientID uint64) (*PaymentIntentDTO, error) {
	req, err := s.chargeRequest(ctx, bookingID, clientID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment intent created",
		zap.Uint64("booking_id", bookingID),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount_pence", req.AmountPence),
	)

	return &PaymentIntentDTO{
		BookingID:       bookingID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          bookingDomain.Money(req.AmountPence).Pounds(),
		AmountPence:     req.AmountPence,
		Currency:        domain.CurrencyGBP,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout page for the booking's computed amount.
func (s *SettlementService) CreateCheckoutSession(ctx context.Context, bookingID, clientID uint64) (*CheckoutSessionDTO, error) {
	req, err := s.chargeRequest(ctx, bookingID, clientID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created",
		zap.Uint64("booking_id", bookingID),
		zap.String("session_id", session.ID),
	)

	return &CheckoutSessionDTO{BookingID: bookingID, SessionID: session.ID, URL: session.URL}, nil
}

// chargeRequest runs the shared payment checks and prices the booking from its rate snapshot.
func (s *SettlementService) chargeRequest(ctx context.Context, bookingID, clientID uint64) (payment.ChargeRequest, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return payment.ChargeRequest{}, err
	}
	if err := bk.AuthorizeClient(clientID); err != nil {
		return payment.ChargeRequest{}, err
	}
	if err := bk.CheckChargeable(); err != nil {
		return payment.ChargeRequest{}, err
	}

	amount := bk.ChargeAmount(s.pricing)
	if amount <= 0 {
		return payment.ChargeRequest{}, domain.NewValidationError("Invalid total cost")
	}

	carerName := "your carer"
	if carer, err := s.parties.Carers.FindCarer(ctx, bk.CarerID()); err == nil {
		carerName = carer.FullName
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return payment.ChargeRequest{}, fmt.Errorf("failed to load carer: %w", err)
	}

	return payment.ChargeRequest{
		BookingID:   bk.ID(),
		ClientID:    bk.ClientID(),
		CarerID:     bk.CarerID(),
		AmountPence: int64(amount),
		ServiceType: bk.ServiceType(),
		CarerName:   carerName,
	}, nil
}

// ConfirmPayment settles the booking once the client reports a completed intent.
// The intent is re-read from the processor; nothing the client sends is trusted.
func (s *SettlementService) ConfirmPayment(ctx context.Context, bookingID, clientID uint64, intentID string) (*SettlementResultDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := bk.AuthorizeClient(clientID); err != nil {
		return nil, err
	}
	if bk.Status() != bookingDomain.StatusCompleted {
		return nil, domain.NewInvalidStateError(fmt.Sprintf("booking is %s, payment requires completed", bk.Status()))
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payment.IntentSucceeded {
		return nil, domain.NewValidationError(fmt.Sprintf("payment intent is %s", intent.Status))
	}
	if intent.BookingID != bookingID {
		return nil, domain.NewValidationError("payment intent does not belong to this booking")
	}
	if expected := bk.ChargeAmount(s.pricing); intent.AmountPence != int64(expected) {
		return nil, domain.NewValidationError(fmt.Sprintf("payment amount %d does not match %d", intent.AmountPence, int64(expected)))
	}

	return s.Settle(ctx, bookingID, intent.ID, bookingDomain.Money(intent.AmountPence), bookingDomain.SourceCapture)
}

// HandleWebhook verifies and applies a processor webhook. Only a bad signature is
// reported to the caller; everything after verification is logged and acknowledged.
func (s *SettlementService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if domain.IsKind(err, domain.KindInvalidSignature) {
			s.logger.Warn("webhook signature verification failed", zap.Error(err))
			return err
		}
		s.logger.Error("failed to decode webhook", zap.Error(err))
		return nil
	}

	log := s.logger.With(
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.Uint64("booking_id", evt.BookingID),
	)

	switch evt.Type {
	case payment.WebhookCheckoutCompleted, payment.WebhookIntentSucceeded:
		if evt.BookingID == 0 {
			log.Warn("webhook without booking_id metadata")
			return nil
		}
		if _, err := s.Settle(ctx, evt.BookingID, evt.Reference, bookingDomain.Money(evt.AmountPence), bookingDomain.SourceWebhook); err != nil {
			log.Error("failed to settle booking from webhook", zap.Error(err))
		}
	case payment.WebhookIntentFailed:
		if evt.BookingID == 0 {
			log.Warn("webhook without booking_id metadata")
			return nil
		}
		if err := s.MarkFailed(ctx, evt.BookingID, evt.Reference); err != nil {
			log.Error("failed to record payment failure", zap.Error(err))
		}
	default:
		log.Debug("ignoring webhook event")
	}
	return nil
}

// Settle marks the booking paid and records the settlement exactly once.
// captured is the amount the processor took; when zero the booking's computed charge is recorded.
// A booking that is already paid is left untouched and reported with Settled false.
func (s *SettlementService) Settle(ctx context.Context, bookingID uint64, reference string, captured bookingDomain.Money, source bookingDomain.SettlementSource) (*SettlementResultDTO, error) {
	var (
		amount   bookingDomain.Money
		expected bookingDomain.Money
		status   bookingDomain.BookingStatus
	)
	bk, err := s.repo.Update(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		status = bk.Status()
		expected = bk.ChargeAmount(s.pricing)
		amount = captured
		if amount <= 0 {
			amount = expected
		}
		return bk.MarkPaid(reference, amount, domain.CurrencyGBP, source)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindAlreadySettled) {
			s.logger.Info("booking already paid, settlement skipped",
				zap.Uint64("booking_id", bookingID),
				zap.String("reference", reference),
				zap.String("source", string(source)),
			)
			return &SettlementResultDTO{
				BookingID:     bookingID,
				Settled:       false,
				PaymentStatus: string(bookingDomain.PaymentPaid),
			}, nil
		}
		return nil, err
	}

	if status != bookingDomain.StatusCompleted {
		s.logger.Warn("payment settled for booking that is not completed",
			zap.Uint64("booking_id", bookingID),
			zap.String("status", string(status)),
			zap.String("reference", reference),
			zap.Int64("amount_pence", int64(amount)),
		)
	} else if captured > 0 && captured != expected {
		s.logger.Warn("captured amount differs from booking charge",
			zap.Uint64("booking_id", bookingID),
			zap.Int64("captured_pence", int64(captured)),
			zap.Int64("expected_pence", int64(expected)),
		)
	}

	s.logger.Info("booking payment settled",
		zap.Uint64("booking_id", bookingID),
		zap.String("reference", reference),
		zap.String("source", string(source)),
		zap.Int64("amount_pence", int64(amount)),
	)

	s.afterSettle(ctx, bk, amount, source)

	return &SettlementResultDTO{
		BookingID:     bookingID,
		Settled:       true,
		PaymentStatus: string(bk.PaymentStatus()),
		Reference:     bk.PaymentReference(),
	}, nil
}

// MarkFailed records a failed charge unless the booking is already paid.
func (s *SettlementService) MarkFailed(ctx context.Context, bookingID uint64, reference string) error {
	_, err := s.repo.Update(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.MarkPaymentFailed(reference)
	})
	if domain.IsKind(err, domain.KindAlreadySettled) {
		s.logger.Info("ignoring payment failure for paid booking", zap.Uint64("booking_id", bookingID))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("booking payment failed", zap.Uint64("booking_id", bookingID), zap.String("reference", reference))
	return nil
}

func (s *SettlementService) afterSettle(ctx context.Context, bk *bookingDomain.Booking, amount bookingDomain.Money, source bookingDomain.SettlementSource) {
	id := bk.ID()
	dto := toBookingDTO(bk)

	s.effects.Go(ctx, "realtime.booking_paid", id, func(context.Context) error {
		_, err := s.realtime.Publish(realtime.EventBookingPaid, dto)
		return err
	})

	evt := bookingDomain.PaymentSettledEvent{
		BookingID:   id,
		Reference:   bk.PaymentReference(),
		AmountPence: int64(amount),
		Currency:    domain.CurrencyGBP,
		Source:      string(source),
		OccurredAt:  time.Now().UTC(),
	}
	s.effects.Go(ctx, "kafka.payment_settled", id, func(ctx context.Context) error {
		return publishEvent(ctx, s.producer, bookingDomain.EventBookingPaymentSettled, id, evt)
	})
}
