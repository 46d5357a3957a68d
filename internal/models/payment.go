package models

import "time"

// PaymentIntentStatus mirrors the processor's intent lifecycle.
type PaymentIntentStatus string

const (
	PaymentIntentRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	PaymentIntentRequiresConfirmation  PaymentIntentStatus = "requires_confirmation"
	PaymentIntentRequiresAction        PaymentIntentStatus = "requires_action"
	PaymentIntentProcessing            PaymentIntentStatus = "processing"
	PaymentIntentSucceeded             PaymentIntentStatus = "succeeded"
	PaymentIntentCanceled              PaymentIntentStatus = "canceled"
)

// CreatePaymentIntentRequest is the body of POST /payments/intent.
// Amount is in minor units of Currency, a lowercase ISO code.
type CreatePaymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`

	CustomerID     string `json:"-"`
	IdempotencyKey string `json:"-"`
}

// PaymentIntent is the processor's view of a card payment.
type PaymentIntent struct {
	ID           string              `json:"intent_id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Status       PaymentIntentStatus `json:"status"`

	// CustomerID is the customer the intent was opened for.
	CustomerID string `json:"-"`
}

// PaymentEventType names events on the payments topic.
type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment.succeeded"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is a processor notification relayed through Kafka.
type PaymentEvent struct {
	ID         string           `json:"id"`
	Type       PaymentEventType `json:"type"`
	IntentID   string           `json:"intent_id"`
	Amount     int64            `json:"amount"`
	Currency   string           `json:"currency"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// PaymentCapture records a succeeded intent until an order is matched to it.
type PaymentCapture struct {
	IntentID     string     `json:"intent_id"`
	Amount       int64      `json:"amount"`
	Currency     string     `json:"currency"`
	OrderID      string     `json:"order_id,omitempty"`
	CapturedAt   time.Time  `json:"captured_at"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}
