package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

const testWebhookSecret = "whsec_test_secret"

func newTestGateway() *StripeGateway {
	return NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		FrontendURL:   "https://app.example.com",
	})
}

func sign(t *testing.T, payload, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantType  string
		wantID    uint64
		reference string
		amount    int64
	}{
		{
			name:      "checkout session completed",
			payload:   `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_intent":"pi_9","amount_total":4500,"metadata":{"booking_id":"42","client_id":"7"}}}}`,
			wantType:  WebhookCheckoutCompleted,
			wantID:    42,
			reference: "pi_9",
			amount:    4500,
		},
		{
			name:      "payment intent succeeded",
			payload:   `{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_3","object":"payment_intent","amount":6000,"metadata":{"booking_id":"11"}}}}`,
			wantType:  WebhookIntentSucceeded,
			wantID:    11,
			reference: "pi_3",
			amount:    6000,
		},
		{
			name:      "payment intent failed without metadata",
			payload:   `{"id":"evt_3","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_4","object":"payment_intent"}}}`,
			wantType:  WebhookIntentFailed,
			wantID:    0,
			reference: "pi_4",
		},
		{
			name:     "unhandled type",
			payload:  `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`,
			wantType: "customer.created",
		},
	}

	g := newTestGateway()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := g.ParseWebhook([]byte(tt.payload), sign(t, tt.payload, testWebhookSecret))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, evt.Type)
			assert.Equal(t, tt.wantID, evt.BookingID)
			assert.Equal(t, tt.reference, evt.Reference)
			assert.Equal(t, tt.amount, evt.AmountPence)
		})
	}
}

func TestParseWebhook_RejectsBadSignature(t *testing.T) {
	g := newTestGateway()
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`

	for name, header := range map[string]string{
		"wrong secret": sign(t, payload, "whsec_other"),
		"missing":      "",
		"garbage":      "t=1,v1=deadbeef",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := g.ParseWebhook([]byte(payload), header)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindInvalidSignature))
		})
	}
}

func TestParseWebhook_TamperedPayload(t *testing.T) {
	g := newTestGateway()
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"booking_id":"1"}}}}`
	header := sign(t, payload, testWebhookSecret)

	tampered := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"booking_id":"2"}}}}`
	_, err := g.ParseWebhook([]byte(tampered), header)
	assert.True(t, domain.IsKind(err, domain.KindInvalidSignature))
}

func TestMetadata(t *testing.T) {
	m := metadata(ChargeRequest{BookingID: 5, ClientID: 6, CarerID: 7})
	assert.Equal(t, map[string]string{"booking_id": "5", "client_id": "6", "carer_id": "7"}, m)
	assert.Equal(t, uint64(5), bookingIDFrom(m))
	assert.Zero(t, bookingIDFrom(map[string]string{"booking_id": "abc"}))
}
