package service

import (
	"context"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

// PaymentService handles payment-related business logic.
type PaymentService struct {
	processor PaymentProcessor
	captures  repository.PaymentCaptureRepository
	events    PaymentEventPublisher
	config    *config.Config
	logger    *logging.LoggerV2
	now       func() time.Time
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	processor PaymentProcessor,
	captures repository.PaymentCaptureRepository,
	events PaymentEventPublisher,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		processor: processor,
		captures:  captures,
		events:    events,
		config:    cfg,
		logger:    logging.NewLoggerV2("payment-service"),
		now:       time.Now,
	}
}

// CreatePaymentIntent opens a card payment for the checkout. Amounts under
// the currency's minimum charge are refused before the processor is called.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntent, error) {
	code, err := ValidatePaymentIntentRequest(req)
	if err != nil {
		return nil, err
	}
	label := code.Lower()

	if minimum := code.MinimumCharge(); req.Amount < minimum {
		metrics.PaymentIntents.WithLabelValues(label, metrics.ResultRejected).Inc()
		return nil, errors.NewAmountTooSmall(req.Amount, minimum, label)
	}

	s.logger.Info("Creating payment intent", logging.Fields{
		"customer_id": req.CustomerID,
		"amount":      code.Format(req.Amount),
	})

	intent, err := s.processor.CreateIntent(ctx, req)
	if err != nil {
		metrics.PaymentIntents.WithLabelValues(label, metrics.ResultError).Inc()
		return nil, err
	}

	metrics.PaymentIntents.WithLabelValues(label, metrics.ResultSuccess).Inc()
	return intent, nil
}

// GetPaymentIntent retrieves the processor's view of an intent.
func (s *PaymentService) GetPaymentIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	s.logger.Debug("Getting payment intent", logging.Fields{"intent_id": intentID})

	if strings.TrimSpace(intentID) == "" {
		return nil, errors.NewValidationError("intent_id", "intent ID is required")
	}

	intent, err := s.processor.GetIntent(ctx, intentID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Error("Failed to get payment intent", logging.Fields{
				"intent_id": intentID,
				"error":     err,
			})
		}
		return nil, err
	}

	// The client secret is only handed out when the intent is created.
	intent.ClientSecret = ""
	return intent, nil
}

// VerifyCardPayment confirms that intentID was opened by customerID and has
// succeeded for exactly amount minor units of currency.
func (s *PaymentService) VerifyCardPayment(ctx context.Context, customerID, intentID, currency string, amount int64) (*models.PaymentIntent, error) {
	intent, err := s.processor.GetIntent(ctx, intentID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.NewPaymentRequired("payment not found")
	}
	if err != nil {
		return nil, err
	}

	if intent.CustomerID != customerID {
		s.logger.Warn("Payment belongs to another customer", logging.Fields{
			"intent_id":       intentID,
			"customer_id":     customerID,
			"intent_customer": intent.CustomerID,
		})
		return nil, errors.NewPaymentRequired("payment not found")
	}
	if intent.Status != models.PaymentIntentSucceeded {
		return nil, errors.NewPaymentRequired("payment has not been confirmed")
	}
	if !strings.EqualFold(intent.Currency, currency) || intent.Amount != amount {
		s.logger.Warn("Payment does not match order", logging.Fields{
			"intent_id":         intentID,
			"intent_amount":     intent.Amount,
			"intent_currency":   intent.Currency,
			"expected_amount":   amount,
			"expected_currency": currency,
		})
		return nil, errors.NewPaymentRequired("payment does not match the order total")
	}

	return intent, nil
}

// MarkOrderRecorded links the capture of intent to the order paid with it.
func (s *PaymentService) MarkOrderRecorded(ctx context.Context, intent *models.PaymentIntent, orderID string) error {
	return s.captures.MarkReconciled(ctx, &models.PaymentCapture{
		IntentID:   intent.ID,
		Amount:     intent.Amount,
		Currency:   strings.ToLower(intent.Currency),
		OrderID:    orderID,
		CapturedAt: s.now().UTC(),
	})
}

// HandleWebhook verifies a processor notification and forwards it to the
// payments topic. Without events the notification is handled in place.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("Rejected payment webhook", logging.Fields{"error": err})
		return err
	}
	if event == nil {
		return nil
	}

	metrics.PaymentCaptures.WithLabelValues(string(event.Type)).Inc()

	if s.config.Features.EnableOrderEvents && s.events != nil {
		err := s.events.PublishPaymentEvent(ctx, event)
		if err == nil {
			return nil
		}
		s.logger.Error("Failed to publish payment event, handling inline", logging.Fields{
			"event_id":  event.ID,
			"intent_id": event.IntentID,
			"error":     err,
		})
	}

	return s.HandlePaymentEvent(ctx, event)
}

// HandlePaymentEvent applies a payment event from the payments topic.
func (s *PaymentService) HandlePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	switch event.Type {
	case models.PaymentEventSucceeded:
		return s.RecordCapture(ctx, &models.PaymentCapture{
			IntentID:   event.IntentID,
			Amount:     event.Amount,
			Currency:   strings.ToLower(event.Currency),
			CapturedAt: event.OccurredAt,
		})
	case models.PaymentEventFailed:
		s.logger.Info("Card payment failed", logging.Fields{
			"intent_id": event.IntentID,
			"amount":    event.Amount,
			"currency":  event.Currency,
		})
		return nil
	default:
		s.logger.Debug("Ignoring payment event", logging.Fields{"type": event.Type})
		return nil
	}
}

// RecordCapture stores a processor capture so the reconciler can match it to an order.
func (s *PaymentService) RecordCapture(ctx context.Context, capture *models.PaymentCapture) error {
	if capture.IntentID == "" {
		return errors.NewValidationError("intent_id", "intent ID is required")
	}
	if capture.CapturedAt.IsZero() {
		capture.CapturedAt = s.now().UTC()
	}

	if err := s.captures.Record(ctx, capture); err != nil {
		s.logger.Error("Failed to record payment capture", logging.Fields{
			"intent_id": capture.IntentID,
			"error":     err,
		})
		return errors.NewPersistenceError("record capture", err)
	}

	s.logger.Info("Payment capture recorded", logging.Fields{
		"intent_id": capture.IntentID,
		"amount":    capture.Amount,
		"currency":  capture.Currency,
	})
	return nil
}
