package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

var orderColumnNames = []string{
	"id", "customer_id", "line_items", "total_primary", "total_secondary", "selected_currency",
	"customer_details", "payment_method", "payment_intent_id", "idempotency_key", "status",
	"created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresOrderRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresOrderRepository(db, logging.NewLoggerV2("test")), mock
}

func testOrder() *models.Order {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		LineItems: []models.LineItem{
			{ProductID: "prod-1", Name: "Linen Shirt", Size: "M", Quantity: 2, UnitPricePrimary: 1000, UnitPriceSecondary: 500},
		},
		TotalPrimary:     2000,
		TotalSecondary:   1000,
		SelectedCurrency: currency.Primary,
		CustomerDetails:  models.CustomerDetails{Name: "Nimal", Email: "nimal@example.com", Phone: "0771234567", Address: "Colombo"},
		PaymentMethod:    models.PaymentMethodCashOnDelivery,
		Status:           models.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func orderRow(o *models.Order) []driver.Value {
	var intent, key interface{}
	if o.PaymentIntentID != "" {
		intent = o.PaymentIntentID
	}
	if o.IdempotencyKey != "" {
		key = o.IdempotencyKey
	}
	return []driver.Value{
		o.ID, o.CustomerID,
		[]byte(`[{"product_id":"prod-1","name":"Linen Shirt","size":"M","quantity":2,"unit_price_primary":1000,"unit_price_secondary":500}]`),
		o.TotalPrimary, o.TotalSecondary, string(o.SelectedCurrency),
		[]byte(`{"name":"Nimal","email":"nimal@example.com","phone":"0771234567","address":"Colombo"}`),
		string(o.PaymentMethod), intent, key, string(o.Status), o.CreatedAt, o.UpdatedAt,
	}
}

func TestPostgresOrderRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), testOrder())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOrderRepository_Create_DuplicateKey(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_idempotency_key_key"})

	order := testOrder()
	order.IdempotencyKey = "pi_123"
	err := repo.Create(context.Background(), order)

	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.False(t, IsRetryableError(err))
}

func TestPostgresOrderRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := testOrder()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(orderRow(want)...))

	got, err := repo.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.LineItems, got.LineItems)
	assert.Equal(t, want.CustomerDetails, got.CustomerDetails)
	assert.Equal(t, currency.LKR, got.SelectedCurrency)
	assert.Equal(t, models.PaymentMethodCashOnDelivery, got.PaymentMethod)
	assert.Equal(t, int64(2000), got.TotalPrimary)
	assert.Empty(t, got.PaymentIntentID)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestPostgresOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPostgresOrderRepository_GetByIdempotencyKey(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := testOrder()
	want.PaymentMethod = models.PaymentMethodCard
	want.PaymentIntentID = "pi_123"
	want.IdempotencyKey = "pi_123"

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE idempotency_key = $1")).
		WithArgs("pi_123").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(orderRow(want)...))

	got, err := repo.GetByIdempotencyKey(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.PaymentIntentID)
	assert.Equal(t, "pi_123", got.IdempotencyKey)
}

func TestPostgresOrderRepository_UpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	updated := testOrder()
	updated.Status = models.OrderStatusOnTheWay

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("ord-1", models.OrderStatusOnTheWay, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(orderRow(updated)...))

	got, err := repo.UpdateStatus(context.Background(), "ord-1", models.OrderStatusOnTheWay)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOnTheWay, got.Status)
}

func TestPostgresOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders")).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	_, err := repo.UpdateStatus(context.Background(), "missing", models.OrderStatusPacking)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPostgresOrderRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs("ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs("ord-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "ord-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "ord-1"), errors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOrderRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := testOrder()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE customer_id = $1")).
		WithArgs("cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("cust-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(orderRow(o)...))

	orders, total, err := repo.List(context.Background(), &models.OrderListFilter{CustomerID: "cust-1", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildOrderFilter(t *testing.T) {
	status := models.OrderStatusPacking

	where, args := buildOrderFilter(&models.OrderListFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildOrderFilter(&models.OrderListFilter{CustomerID: "cust-1", Status: &status})
	assert.Equal(t, " WHERE customer_id = $1 AND status = $2", where)
	assert.Equal(t, []interface{}{"cust-1", status}, args)
}

func TestPostgresPaymentCaptureRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPaymentCaptureRepository(db, logging.NewLoggerV2("test"))
	captured := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_captures (intent_id, amount, currency, captured_at)")).
		WithArgs("pi_1", int64(5000), "lkr", captured).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET order_id = EXCLUDED.order_id")).
		WithArgs("pi_1", int64(5000), "lkr", captured, "ord-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE reconciled_at IS NULL AND captured_at < $1")).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"intent_id", "amount", "currency", "captured_at"}).
			AddRow("pi_2", int64(50), "jpy", captured))

	capture := &models.PaymentCapture{IntentID: "pi_1", Amount: 5000, Currency: "lkr", CapturedAt: captured}
	require.NoError(t, repo.Record(context.Background(), capture))

	capture.OrderID = "ord-1"
	require.NoError(t, repo.MarkReconciled(context.Background(), capture))
	assert.NotNil(t, capture.ReconciledAt)

	pending, err := repo.ListUnreconciled(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pi_2", pending[0].IntentID)
	assert.Equal(t, int64(50), pending[0].Amount)

	assert.NoError(t, mock.ExpectationsWereMet())
}
