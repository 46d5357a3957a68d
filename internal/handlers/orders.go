package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// HeaderIdempotencyKey lets cash-on-delivery checkouts be retried safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// SubmitOrder handles POST /api/v1/orders
func (h *Handlers) SubmitOrder(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		handleError(c, errors.ErrUnauthorized)
		return
	}

	var req models.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind order request", logging.Fields{"error": err})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)

	order, err := h.orderService.SubmitOrder(c.Request.Context(), identity, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ListMyOrders handles GET /api/v1/orders/mine
func (h *Handlers) ListMyOrders(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		handleError(c, errors.ErrUnauthorized)
		return
	}

	h.listOrders(c, models.OrderScope{CustomerID: identity.CustomerID})
}

// ListOrders handles GET /api/v1/orders (admin)
func (h *Handlers) ListOrders(c *gin.Context) {
	h.listOrders(c, models.OrderScope{Admin: true})
}

func (h *Handlers) listOrders(c *gin.Context, scope models.OrderScope) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		handleError(c, err)
		return
	}

	page, err := h.orderService.ListOrders(c.Request.Context(), scope, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetOrder handles GET /api/v1/orders/:id (admin)
func (h *Handlers) GetOrder(c *gin.Context) {
	details, err := h.orderService.GetOrderDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id (admin)
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id (admin)
func (h *Handlers) DeleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parsePagination(c *gin.Context) (int, int, error) {
	v := &errors.ValidationError{Message: "invalid pagination"}

	limit, err := queryInt(c, "limit")
	if err != nil {
		v.Add("limit", "limit must be an integer")
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		v.Add("offset", "offset must be an integer")
	}

	return limit, offset, v.OrNil()
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// handleError writes the response for a service error. Persistence and
// unexpected errors never leak their detail to the client.
func handleError(c *gin.Context, err error) {
	var validationErr *errors.ValidationError
	var paymentErr *errors.PaymentError

	switch {
	case err == nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	case errors.Is(err, errors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"details": validationErr.Details,
		})
	case errors.Is(err, errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, errors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, errors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.As(err, &paymentErr):
		c.JSON(paymentStatus(paymentErr), gin.H{
			"error":   paymentErr.Kind.Error(),
			"message": paymentErr.Message,
		})
	default:
		fields := logging.Fields{"path": c.FullPath(), "error": err}
		if c.Request != nil {
			fields["request_id"] = middleware.RequestIDFromContext(c.Request.Context())
		}
		logging.NewLoggerV2("handlers").Error("Request failed", fields)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func paymentStatus(err *errors.PaymentError) int {
	switch err.Kind {
	case errors.ErrPaymentRequired:
		return http.StatusPaymentRequired
	case errors.ErrAmountTooSmall:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
