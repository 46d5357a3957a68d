package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// OrderEventPublisher announces order lifecycle changes.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	PublishOrderDeleted(ctx context.Context, order *models.Order) error
}

// PaymentEventPublisher relays processor notifications to the payments topic.
type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

// PaymentProcessor is the card payment provider.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error)
}

// PaymentVerifier confirms that a card order was paid before it is stored.
type PaymentVerifier interface {
	VerifyCardPayment(ctx context.Context, customerID, intentID, currency string, amount int64) (*models.PaymentIntent, error)
	MarkOrderRecorded(ctx context.Context, intent *models.PaymentIntent, orderID string) error
}

// CustomerDirectory resolves customer summaries for admin views.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, customerID string) (*models.CustomerSummary, error)
}
