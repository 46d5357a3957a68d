package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/service"
)

var (
	_ OrderService   = (*service.OrderService)(nil)
	_ PaymentService = (*service.PaymentService)(nil)
)

// OrderService is the order workflow behind the order routes.
type OrderService interface {
	SubmitOrder(ctx context.Context, identity models.Identity, req *models.SubmitOrderRequest) (*models.Order, error)
	ListOrders(ctx context.Context, scope models.OrderScope, limit, offset int) (*models.OrderPage, error)
	GetOrderDetails(ctx context.Context, id string) (*models.OrderDetails, error)
	UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// PaymentService is the card payment flow behind the payment routes.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	orderService   OrderService
	paymentService PaymentService
	catalog        repository.CatalogStore
	secondaryRate  decimal.Decimal
	pingers        map[string]Pinger
	config         *config.Config
	logger         *logging.LoggerV2
}

// NewHandlers creates a new handlers instance. pingers are checked by /ready.
func NewHandlers(
	orderService OrderService,
	paymentService PaymentService,
	catalog repository.CatalogStore,
	secondaryRate decimal.Decimal,
	pingers map[string]Pinger,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		paymentService: paymentService,
		catalog:        catalog,
		secondaryRate:  secondaryRate,
		pingers:        pingers,
		config:         cfg,
		logger:         logging.NewLoggerV2("handlers"),
	}
}
