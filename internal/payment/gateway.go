// Package payment talks to the card processor.
package payment

import "context"

// Webhook event kinds the booking service acts on.
const (
	WebhookCheckoutCompleted = "checkout.session.completed"
	WebhookIntentSucceeded   = "payment_intent.succeeded"
	WebhookIntentFailed      = "payment_intent.payment_failed"
)

// Intent status reported by the processor once funds are captured.
const IntentSucceeded = "succeeded"

// ChargeRequest describes one booking charge.
type ChargeRequest struct {
	BookingID   uint64
	ClientID    uint64
	CarerID     uint64
	AmountPence int64
	ServiceType string
	CarerName   string
}

// Intent is the processor's payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountPence  int64
	Currency     string
	BookingID    uint64
}

// CheckoutSession is a hosted checkout page.
type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified processor notification reduced to what settlement needs.
// BookingID is zero when the metadata did not carry one. AmountPence is what the
// processor captured, zero when the event does not report it.
type WebhookEvent struct {
	ID          string
	Type        string
	BookingID   uint64
	Reference   string
	AmountPence int64
}

// Gateway is the card processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req ChargeRequest) (*Intent, error)
	CreateCheckout(ctx context.Context, req ChargeRequest) (*CheckoutSession, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// ParseWebhook verifies the signature over the raw payload before decoding it.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
