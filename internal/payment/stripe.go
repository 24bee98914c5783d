package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

const (
	metaBookingID = "booking_id"
	metaClientID  = "client_id"
	metaCarerID   = "carer_id"
)

// StripeConfig holds the Stripe account settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	FrontendURL   string
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api *client.API
	cfg StripeConfig
}

// NewStripeGateway creates a new StripeGateway.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyGBP)
	}
	return &StripeGateway{api: client.New(cfg.SecretKey, nil), cfg: cfg}
}

// CreateIntent creates a PaymentIntent for the booking and returns its client secret.
func (g *StripeGateway) CreateIntent(ctx context.Context, req ChargeRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountPence),
		Currency:    stripe.String(g.cfg.Currency),
		Description: stripe.String(fmt.Sprintf("Booking #%d payment for %s", req.BookingID, req.CarerName)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata(req) {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, domain.NewDependencyError("stripe", err)
	}
	return toIntent(pi), nil
}

// CreateCheckout creates a hosted checkout session with a single line item.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req ChargeRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.cfg.Currency),
					UnitAmount: stripe.Int64(req.AmountPence),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("Booking #%d - %s", req.BookingID, req.ServiceType)),
						Description: stripe.String("Service by " + req.CarerName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/payment-success?bookingId=%d&session_id={CHECKOUT_SESSION_ID}", g.cfg.FrontendURL, req.BookingID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/payment-cancel?bookingId=%d", g.cfg.FrontendURL, req.BookingID)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata(req),
		},
	}
	params.Context = ctx
	for k, v := range metadata(req) {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, domain.NewDependencyError("stripe", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// GetIntent retrieves a PaymentIntent by id.
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, domain.NewNotFoundError("payment intent", id)
		}
		return nil, domain.NewDependencyError("stripe", err)
	}
	return toIntent(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the events settlement handles.
// Other event types come back with only ID and Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, domain.NewInvalidSignatureError(err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case WebhookCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, domain.NewValidationError("malformed checkout session: " + err.Error())
		}
		out.BookingID = bookingIDFrom(s.Metadata)
		if s.PaymentIntent != nil {
			out.Reference = s.PaymentIntent.ID
		}
		if out.Reference == "" {
			out.Reference = s.ID
		}
		out.AmountPence = s.AmountTotal
	case WebhookIntentSucceeded, WebhookIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, domain.NewValidationError("malformed payment intent: " + err.Error())
		}
		out.BookingID = bookingIDFrom(pi.Metadata)
		out.Reference = pi.ID
		out.AmountPence = pi.AmountReceived
		if out.AmountPence == 0 && out.Type == WebhookIntentSucceeded {
			out.AmountPence = pi.Amount
		}
	}
	return out, nil
}

func metadata(req ChargeRequest) map[string]string {
	return map[string]string{
		metaBookingID: strconv.FormatUint(req.BookingID, 10),
		metaClientID:  strconv.FormatUint(req.ClientID, 10),
		metaCarerID:   strconv.FormatUint(req.CarerID, 10),
	}
}

func bookingIDFrom(meta map[string]string) uint64 {
	id, err := strconv.ParseUint(meta[metaBookingID], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountPence:  pi.Amount,
		Currency:     string(pi.Currency),
		BookingID:    bookingIDFrom(pi.Metadata),
	}
}
