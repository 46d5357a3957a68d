package repository

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

var (
	_ OrderRepository          = (*PostgresOrderRepository)(nil)
	_ PaymentCaptureRepository = (*PostgresPaymentCaptureRepository)(nil)
	_ OrderCache               = (*RedisOrderCache)(nil)
	_ CatalogStore             = (*PgxCatalogStore)(nil)
)

// OrderRepository persists orders.
type OrderRepository interface {
	// Create inserts a new order. A duplicate id or idempotency key yields errors.ErrConflict.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, id string) error
}

// OrderCache defines caching operations for orders.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
	GetByCustomerID(ctx context.Context, customerID string) ([]*models.Order, error)
	SetByCustomerID(ctx context.Context, customerID string, orders []*models.Order) error
	InvalidateByCustomerID(ctx context.Context, customerID string) error
}

// PaymentCaptureRepository tracks processor captures until an order is matched to them.
type PaymentCaptureRepository interface {
	// Record stores a capture without touching its reconciliation state.
	Record(ctx context.Context, capture *models.PaymentCapture) error
	// MarkReconciled links a capture to its order, creating the row if the
	// processor notification has not arrived yet.
	MarkReconciled(ctx context.Context, capture *models.PaymentCapture) error
	ListUnreconciled(ctx context.Context, capturedBefore time.Time, limit int) ([]*models.PaymentCapture, error)
}

// CatalogStore is the read side of the product catalog.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListSubcategories(ctx context.Context, categoryID string) ([]*models.Subcategory, error)
	ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductSummaries(ctx context.Context, ids []string) (map[string]*models.ProductSummary, error)
}
