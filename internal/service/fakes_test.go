package service

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{MaxRetries: 1, RetryDelay: time.Millisecond},
		Reconciliation: config.ReconciliationConfig{
			Interval:    time.Minute,
			GracePeriod: 10 * time.Minute,
			BatchSize:   100,
		},
		Features: config.FeatureFlags{
			EnableOrderCaching: true,
			EnableOrderEvents:  true,
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

// memOrderRepo is an in-memory OrderRepository. createErrs are returned by
// successive Create calls before any insert happens. lostAcks Create calls
// store the order and then report a broken connection.
type memOrderRepo struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	createErrs []error
	lostAcks   int
	creates    int
	lists      int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++

	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, o := range r.orders {
		if o.ID == order.ID || (order.IdempotencyKey != "" && o.IdempotencyKey == order.IdempotencyKey) {
			return fmt.Errorf("%w: order %s", errors.ErrConflict, order.ID)
		}
	}
	cp := *order
	r.orders[order.ID] = &cp
	if r.lostAcks > 0 {
		r.lostAcks--
		return driver.ErrBadConn
	}
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memOrderRepo) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++

	var matched []*models.Order
	for _, o := range r.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		cp := *o
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset >= total {
		return []*models.Order{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return errors.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *memOrderRepo) put(orders ...*models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range orders {
		r.orders[o.ID] = o
	}
}

type memOrderCache struct {
	orders   map[string]*models.Order
	customer map[string][]*models.Order
	setErr   error
}

func newMemOrderCache() *memOrderCache {
	return &memOrderCache{
		orders:   make(map[string]*models.Order),
		customer: make(map[string][]*models.Order),
	}
}

func (c *memOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	return c.orders[id], nil
}

func (c *memOrderCache) Set(ctx context.Context, order *models.Order) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.orders[order.ID] = order
	return nil
}

func (c *memOrderCache) Delete(ctx context.Context, id string) error {
	delete(c.orders, id)
	return nil
}

func (c *memOrderCache) GetByCustomerID(ctx context.Context, customerID string) ([]*models.Order, error) {
	return c.customer[customerID], nil
}

func (c *memOrderCache) SetByCustomerID(ctx context.Context, customerID string, orders []*models.Order) error {
	c.customer[customerID] = orders
	return nil
}

func (c *memOrderCache) InvalidateByCustomerID(ctx context.Context, customerID string) error {
	delete(c.customer, customerID)
	return nil
}

type memCaptures struct {
	captures map[string]*models.PaymentCapture
}

func newMemCaptures() *memCaptures {
	return &memCaptures{captures: make(map[string]*models.PaymentCapture)}
}

func (m *memCaptures) Record(ctx context.Context, capture *models.PaymentCapture) error {
	if existing, ok := m.captures[capture.IntentID]; ok {
		existing.Amount = capture.Amount
		existing.Currency = capture.Currency
		return nil
	}
	cp := *capture
	m.captures[capture.IntentID] = &cp
	return nil
}

func (m *memCaptures) MarkReconciled(ctx context.Context, capture *models.PaymentCapture) error {
	now := time.Now().UTC()
	cp := *capture
	if existing, ok := m.captures[capture.IntentID]; ok {
		cp.CapturedAt = existing.CapturedAt
	}
	cp.ReconciledAt = &now
	m.captures[capture.IntentID] = &cp
	capture.ReconciledAt = &now
	return nil
}

func (m *memCaptures) ListUnreconciled(ctx context.Context, capturedBefore time.Time, limit int) ([]*models.PaymentCapture, error) {
	var out []*models.PaymentCapture
	for _, c := range m.captures {
		if c.ReconciledAt == nil && c.CapturedAt.Before(capturedBefore) {
			cp := *c
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error) {
	args := m.Called(ctx, req)
	intent, _ := args.Get(0).(*models.PaymentIntent)
	return intent, args.Error(1)
}

func (m *mockProcessor) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, intentID)
	intent, _ := args.Get(0).(*models.PaymentIntent)
	return intent, args.Error(1)
}

func (m *mockProcessor) ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	args := m.Called(payload, signature)
	event, _ := args.Get(0).(*models.PaymentEvent)
	return event, args.Error(1)
}

type recordingEvents struct {
	created       []*models.Order
	statusChanged []models.OrderStatus
	deleted       []string
	payments      []*models.PaymentEvent
	err           error
}

func (e *recordingEvents) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	e.created = append(e.created, order)
	return e.err
}

func (e *recordingEvents) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	e.statusChanged = append(e.statusChanged, previousStatus)
	return e.err
}

func (e *recordingEvents) PublishOrderDeleted(ctx context.Context, order *models.Order) error {
	e.deleted = append(e.deleted, order.ID)
	return e.err
}

func (e *recordingEvents) PublishPaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	e.payments = append(e.payments, event)
	return e.err
}

type stubCustomers struct {
	customer *models.CustomerSummary
	err      error
}

func (s *stubCustomers) GetCustomer(ctx context.Context, customerID string) (*models.CustomerSummary, error) {
	return s.customer, s.err
}

// customerDirectory resolves known customers and counts lookups.
type customerDirectory struct {
	customers map[string]*models.CustomerSummary
	lookups   int
}

func (d *customerDirectory) GetCustomer(ctx context.Context, customerID string) (*models.CustomerSummary, error) {
	d.lookups++
	c, ok := d.customers[customerID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return c, nil
}
