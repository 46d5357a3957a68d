package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

var testSecret = []byte("server-test-secret")

type stubOrders struct {
	lastScope models.OrderScope
}

func (s *stubOrders) SubmitOrder(ctx context.Context, identity models.Identity, req *models.SubmitOrderRequest) (*models.Order, error) {
	return &models.Order{ID: "o-1", CustomerID: identity.CustomerID, Status: models.OrderStatusPending}, nil
}

func (s *stubOrders) ListOrders(ctx context.Context, scope models.OrderScope, limit, offset int) (*models.OrderPage, error) {
	s.lastScope = scope
	return &models.OrderPage{Orders: []*models.Order{}, Limit: 20}, nil
}

func (s *stubOrders) GetOrderDetails(ctx context.Context, id string) (*models.OrderDetails, error) {
	return &models.OrderDetails{Order: &models.Order{ID: id}}, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	return &models.Order{ID: id, Status: models.OrderStatus(req.Status)}, nil
}

func (s *stubOrders) DeleteOrder(ctx context.Context, id string) error {
	return nil
}

type stubPayments struct{}

func (stubPayments) CreatePaymentIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (stubPayments) GetPaymentIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{ID: intentID, Status: models.PaymentIntentSucceeded}, nil
}

func (stubPayments) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return nil
}

func newTestServer(t *testing.T, rateLimit config.RateLimitConfig) (*Server, *stubOrders) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:       config.AppConfig{Name: "orders-service", Env: "test"},
		Server:    config.ServerConfig{Port: 0},
		Auth:      config.AuthConfig{JWTSecret: string(testSecret)},
		RateLimit: rateLimit,
	}

	orders := &stubOrders{}
	h := handlers.NewHandlers(orders, stubPayments{}, nil, decimal.RequireFromString("0.35"), nil, cfg)

	var throttle *middleware.Throttle
	if rateLimit.Enabled {
		throttle = middleware.NewThrottle(rateLimit)
	}
	return New(h, throttle, cfg), orders
}

func bearer(t *testing.T, id, role string) string {
	t.Helper()
	claims := &middleware.Claims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + token
}

func request(s *Server, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRoutes_Operational(t *testing.T) {
	s, _ := newTestServer(t, config.RateLimitConfig{})

	for _, path := range []string{"/health", "/live", "/version", "/ready", "/metrics"} {
		w := request(s, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := request(s, http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	s, _ := newTestServer(t, config.RateLimitConfig{})

	w := request(s, http.MethodGet, "/api/v1/currency?country=JP", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(s, http.MethodPost, "/api/v1/payments/webhook", "", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_Authentication(t *testing.T) {
	s, orders := newTestServer(t, config.RateLimitConfig{})
	customer := bearer(t, "cust-1", "customer")
	admin := bearer(t, "admin-1", models.RoleAdmin)

	w := request(s, http.MethodPost, "/api/v1/orders", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(s, http.MethodGet, "/api/v1/orders/mine", customer, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderScope{CustomerID: "cust-1"}, orders.lastScope)

	w = request(s, http.MethodGet, "/api/v1/orders", customer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(s, http.MethodGet, "/api/v1/orders", admin, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, orders.lastScope.Admin)

	w = request(s, http.MethodGet, "/api/v1/orders/o-9", admin, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(s, http.MethodDelete, "/api/v1/orders/o-9", customer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutes_ThrottleCheckout(t *testing.T) {
	s, _ := newTestServer(t, config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             1,
		TTL:               time.Minute,
		MaxEntries:        10,
	})
	customer := bearer(t, "cust-1", "customer")
	body := `{"amount":6000,"currency":"lkr"}`

	w := request(s, http.MethodPost, "/api/v1/payments/intent", customer, body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(s, http.MethodPost, "/api/v1/payments/intent", customer, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	other := bearer(t, "cust-2", "customer")
	w = request(s, http.MethodPost, "/api/v1/payments/intent", other, body)
	assert.Equal(t, http.StatusOK, w.Code)

	// Reads are not throttled.
	w = request(s, http.MethodGet, "/api/v1/orders/mine", customer, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
