package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// intentAPI is the part of the Stripe payment intent client we use.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripePaymentClient creates and inspects card payment intents on Stripe.
type StripePaymentClient struct {
	intents       intentAPI
	webhookSecret string
	logger        *logging.LoggerV2
}

// NewStripePaymentClient creates a client bound to the configured secret key.
func NewStripePaymentClient(cfg config.StripeConfig, logger *logging.LoggerV2) *StripePaymentClient {
	sc := client.New(cfg.SecretKey, nil)
	return &StripePaymentClient{
		intents:       sc.PaymentIntents,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// CreateIntent opens a payment intent for amount minor units of currency.
func (c *StripePaymentClient) CreateIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error) {
	c.logger.Debug("Creating payment intent", logging.Fields{
		"amount":   req.Amount,
		"currency": req.Currency,
	})

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.CustomerID != "" {
		params.AddMetadata("customer_id", req.CustomerID)
	}
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		params.AddMetadata("request_id", requestID)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		c.logger.Error("Payment intent creation failed", logging.Fields{
			"amount":   req.Amount,
			"currency": req.Currency,
			"error":    err.Error(),
		})
		return nil, adapterError(err)
	}

	c.logger.Info("Payment intent created", logging.Fields{
		"intent_id": pi.ID,
		"amount":    pi.Amount,
		"currency":  pi.Currency,
	})

	return toPaymentIntent(pi), nil
}

// GetIntent fetches the current state of an intent.
func (c *StripePaymentClient) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.intents.Get(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, errors.ErrNotFound
		}
		return nil, adapterError(err)
	}

	return toPaymentIntent(pi), nil
}

// ParseWebhook verifies a Stripe-Signature header and converts the intent
// events we act on. Other event types yield nil, nil.
func (c *StripePaymentClient) ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.NewValidationError("signature", "invalid webhook signature")
	}

	var eventType models.PaymentEventType
	switch string(event.Type) {
	case "payment_intent.succeeded":
		eventType = models.PaymentEventSucceeded
	case "payment_intent.payment_failed":
		eventType = models.PaymentEventFailed
	default:
		c.logger.Debug("Ignoring webhook event", logging.Fields{"type": string(event.Type)})
		return nil, nil
	}

	if event.Data == nil {
		return nil, errors.NewValidationError("data", "webhook event has no data")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	occurredAt := time.Now().UTC()
	if event.Created > 0 {
		occurredAt = time.Unix(event.Created, 0).UTC()
	}

	return &models.PaymentEvent{
		ID:         event.ID,
		Type:       eventType,
		IntentID:   pi.ID,
		Amount:     pi.Amount,
		Currency:   string(pi.Currency),
		OccurredAt: occurredAt,
	}, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       models.PaymentIntentStatus(pi.Status),
		CustomerID:   pi.Metadata["customer_id"],
	}
}

// adapterError keeps the processor's message so it can be shown to the shopper.
func adapterError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return errors.NewPaymentAdapterError(stripeErr.Msg, err)
	}
	return errors.NewPaymentAdapterError("payment processor unavailable", err)
}
