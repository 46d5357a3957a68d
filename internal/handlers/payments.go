package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const (
	HeaderStripeSignature = "Stripe-Signature"

	maxWebhookBytes = 64 << 10
)

// CreatePaymentIntent handles POST /api/v1/payments/intent
func (h *Handlers) CreatePaymentIntent(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		handleError(c, errors.ErrUnauthorized)
		return
	}

	var req models.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind payment intent request", logging.Fields{"error": err})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.CustomerID = identity.CustomerID
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)

	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_secret": intent.ClientSecret,
		"intent_id":     intent.ID,
	})
}

// GetPaymentIntent handles GET /api/v1/payments/intent/:id
func (h *Handlers) GetPaymentIntent(c *gin.Context) {
	intent, err := h.paymentService.GetPaymentIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// PaymentWebhook handles POST /api/v1/payments/webhook
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	signature := c.GetHeader(HeaderStripeSignature)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("Failed to read webhook payload", logging.Fields{"error": err})
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
