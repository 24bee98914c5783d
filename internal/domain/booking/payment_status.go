package booking

import "fmt"

// PaymentStatus is the settlement state of a booking, orthogonal to its lifecycle.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsValid reports whether p is a known payment status.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// ParsePaymentStatus converts a string to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return p, nil
}

// SettlementSource records which path confirmed a payment.
type SettlementSource string

const (
	SourceWebhook SettlementSource = "webhook"
	SourceCapture SettlementSource = "capture"
	SourceEvent   SettlementSource = "event"
)
