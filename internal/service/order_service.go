package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

// OrderService handles order business logic.
type OrderService struct {
	orderRepo  repository.OrderRepository
	orderCache repository.OrderCache
	catalog    repository.CatalogStore
	customers  CustomerDirectory
	payments   PaymentVerifier
	events     OrderEventPublisher
	retry      repository.RetryConfig
	config     *config.Config
	logger     *logging.LoggerV2
	now        func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	orderCache repository.OrderCache,
	catalog repository.CatalogStore,
	customers CustomerDirectory,
	payments PaymentVerifier,
	events OrderEventPublisher,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		orderCache: orderCache,
		catalog:    catalog,
		customers:  customers,
		payments:   payments,
		events:     events,
		retry:      repository.RetryConfigFrom(cfg.Database),
		config:     cfg,
		logger:     logging.NewLoggerV2("order-service"),
		now:        time.Now,
	}
}

// SubmitOrder places an order for the calling customer. Card orders are only
// stored once the processor reports the intent as paid in full. Resubmitting
// with the same idempotency key returns the order created the first time.
func (s *OrderService) SubmitOrder(ctx context.Context, identity models.Identity, req *models.SubmitOrderRequest) (*models.Order, error) {
	if identity.CustomerID == "" {
		return nil, errors.ErrUnauthorized
	}
	if req.CustomerID != "" && req.CustomerID != identity.CustomerID {
		return nil, errors.ErrForbidden
	}

	s.logger.Info("Submitting order", logging.Fields{
		"customer_id":    identity.CustomerID,
		"item_count":     len(req.LineItems),
		"payment_method": req.PaymentMethod,
		"currency":       req.SelectedCurrency,
	})

	co, err := ValidateSubmitOrderRequest(req)
	if err != nil {
		metrics.OrdersSubmitted.WithLabelValues("unknown", "unknown", metrics.ResultRejected).Inc()
		return nil, err
	}
	methodLabel, currencyLabel := string(co.method), string(co.currency)

	key := req.IdempotencyKey
	if co.method == models.PaymentMethodCard {
		key = req.PaymentIntentID
	}

	if key != "" {
		existing, err := s.findByIdempotencyKey(ctx, identity, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Returning previously submitted order", logging.Fields{
				"order_id":    existing.ID,
				"customer_id": identity.CustomerID,
			})
			metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultReplayed).Inc()
			return existing, nil
		}
	}

	amount := co.totals.For(co.currency)

	var intent *models.PaymentIntent
	if co.method == models.PaymentMethodCard {
		if req.PaymentIntentID == "" {
			metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultRejected).Inc()
			return nil, errors.NewPaymentRequired("card orders require a confirmed payment")
		}
		intent, err = s.payments.VerifyCardPayment(ctx, identity.CustomerID, req.PaymentIntentID, co.currency.Lower(), amount)
		if err != nil {
			s.logger.Warn("Card payment not confirmed", logging.Fields{
				"customer_id":       identity.CustomerID,
				"payment_intent_id": req.PaymentIntentID,
				"error":             err,
			})
			metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultRejected).Inc()
			return nil, err
		}
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:               uuid.New().String(),
		CustomerID:       identity.CustomerID,
		LineItems:        snapshotLineItems(req.LineItems),
		TotalPrimary:     co.totals.Primary,
		TotalSecondary:   co.totals.Secondary,
		SelectedCurrency: co.currency,
		CustomerDetails:  req.CustomerDetails,
		PaymentMethod:    co.method,
		IdempotencyKey:   key,
		Status:           models.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if co.method == models.PaymentMethodCard {
		order.PaymentIntentID = req.PaymentIntentID
	}

	stored, err := s.persist(ctx, identity, order)
	if err != nil {
		metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultError).Inc()
		return nil, err
	}
	if stored != order {
		metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultReplayed).Inc()
		return stored, nil
	}

	if intent != nil {
		if err := s.payments.MarkOrderRecorded(ctx, intent, order.ID); err != nil {
			// Log but don't fail, the sweeper will report the capture.
			s.logger.Error("Failed to link payment capture to order", logging.Fields{
				"order_id":          order.ID,
				"payment_intent_id": intent.ID,
				"error":             err,
			})
		}
	}

	if s.config.Features.EnableOrderCaching {
		if err := s.orderCache.InvalidateByCustomerID(ctx, order.CustomerID); err != nil {
			s.logger.Error("Failed to invalidate customer order cache", logging.Fields{
				"customer_id": order.CustomerID,
				"error":       err,
			})
		}
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err,
			})
		}
	}

	metrics.OrdersSubmitted.WithLabelValues(methodLabel, currencyLabel, metrics.ResultSuccess).Inc()
	s.logger.Info("Order submitted successfully", logging.Fields{
		"order_id":       order.ID,
		"customer_id":    order.CustomerID,
		"payment_method": order.PaymentMethod,
		"total":          co.currency.Format(amount),
	})

	return order, nil
}

// findByIdempotencyKey returns the order already stored under key, or nil.
// A key held by another customer's order is a conflict.
func (s *OrderService) findByIdempotencyKey(ctx context.Context, identity models.Identity, key string) (*models.Order, error) {
	existing, err := s.orderRepo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to look up idempotency key", logging.Fields{
			"customer_id": identity.CustomerID,
			"error":       err,
		})
		return nil, errors.NewPersistenceError("lookup order", err)
	}
	if existing.CustomerID != identity.CustomerID {
		return nil, errors.ErrConflict
	}
	return existing, nil
}

// persist writes order with the bounded retry policy. When a concurrent or
// earlier submission already stored the same idempotency key, that order is
// returned instead. A row left by an earlier attempt of this call counts as
// success.
func (s *OrderService) persist(ctx context.Context, identity models.Identity, order *models.Order) (*models.Order, error) {
	attempts := 0
	err := repository.ExecuteWithRetry(ctx, s.retry, func(ctx context.Context) error {
		if attempts > 0 {
			metrics.PersistenceRetries.Inc()
			s.logger.Warn("Retrying order write", logging.Fields{
				"order_id": order.ID,
				"attempt":  attempts + 1,
			})
		}
		attempts++
		return s.orderRepo.Create(ctx, order)
	})
	if err == nil {
		return order, nil
	}

	// A retry that collides with its own row means an earlier attempt committed
	// but its acknowledgement was lost.
	if errors.Is(err, errors.ErrConflict) && attempts > 1 {
		stored, lookupErr := s.orderRepo.GetByID(ctx, order.ID)
		if lookupErr == nil && stored.CustomerID == order.CustomerID {
			s.logger.Warn("Order write committed before a failed acknowledgement", logging.Fields{
				"order_id": order.ID,
				"attempts": attempts,
			})
			return order, nil
		}
	}

	if errors.Is(err, errors.ErrConflict) && order.IdempotencyKey != "" {
		existing, lookupErr := s.findByIdempotencyKey(ctx, identity, order.IdempotencyKey)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
	}

	s.logger.Error("Failed to store order", logging.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"attempts":    attempts,
		"error":       err,
	})
	return nil, errors.NewPersistenceError("create order", err)
}

// ListOrders returns a page of orders newest first. Customers see only their
// own orders; admin listings carry each order's display total and customer.
func (s *OrderService) ListOrders(ctx context.Context, scope models.OrderScope, limit, offset int) (*models.OrderPage, error) {
	if !scope.Admin && scope.CustomerID == "" {
		return nil, errors.ErrUnauthorized
	}

	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}

	cacheable := !scope.Admin && offset == 0 && limit == defaultPageSize && s.config.Features.EnableOrderCaching
	if cacheable {
		cached, err := s.orderCache.GetByCustomerID(ctx, scope.CustomerID)
		if err != nil {
			s.logger.Warn("Order cache read failed", logging.Fields{
				"customer_id": scope.CustomerID,
				"error":       err,
			})
		}
		// A full page cannot tell how many orders exist past it.
		if cached != nil && len(cached) < limit {
			s.logger.Debug("Orders found in cache", logging.Fields{"customer_id": scope.CustomerID})
			return &models.OrderPage{Orders: cached, Total: len(cached), Limit: limit, Offset: offset}, nil
		}
	}

	filter := &models.OrderListFilter{Limit: limit, Offset: offset}
	if !scope.Admin {
		filter.CustomerID = scope.CustomerID
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list orders", logging.Fields{
			"customer_id": filter.CustomerID,
			"error":       err,
		})
		return nil, errors.NewPersistenceError("list orders", err)
	}

	if cacheable {
		if err := s.orderCache.SetByCustomerID(ctx, scope.CustomerID, orders); err != nil {
			s.logger.Warn("Failed to cache customer orders", logging.Fields{
				"customer_id": scope.CustomerID,
				"error":       err,
			})
		}
	}

	if scope.Admin {
		customers := s.lookupCustomers(ctx, orders)
		for i, order := range orders {
			orders[i] = order.WithDisplayTotal()
			orders[i].Customer = customers[order.CustomerID]
		}
	}

	return &models.OrderPage{Orders: orders, Total: total, Limit: limit, Offset: offset}, nil
}

// lookupCustomers resolves each distinct customer of orders once. Customers
// the directory cannot resolve are left out.
func (s *OrderService) lookupCustomers(ctx context.Context, orders []*models.Order) map[string]*models.CustomerSummary {
	if s.customers == nil {
		return nil
	}

	found := make(map[string]*models.CustomerSummary)
	seen := make(map[string]bool)
	for _, order := range orders {
		if seen[order.CustomerID] {
			continue
		}
		seen[order.CustomerID] = true

		customer, err := s.customers.GetCustomer(ctx, order.CustomerID)
		if err != nil {
			s.logger.Warn("Failed to resolve order customer", logging.Fields{
				"customer_id": order.CustomerID,
				"error":       err,
			})
			continue
		}
		found[order.CustomerID] = customer
	}
	return found
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.logger.Debug("Getting order", logging.Fields{"order_id": id})

	if s.config.Features.EnableOrderCaching {
		if order, err := s.orderCache.Get(ctx, id); err == nil && order != nil {
			s.logger.Debug("Order found in cache", logging.Fields{"order_id": id})
			return order, nil
		}
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get order", err)
	}

	if s.config.Features.EnableOrderCaching {
		if err := s.orderCache.Set(ctx, order); err != nil {
			s.logger.Warn("Failed to cache order", logging.Fields{
				"order_id": id,
				"error":    err,
			})
		}
	}

	return order, nil
}

// GetOrderDetails expands an order with its customer and product summaries.
// The order is returned even when either lookup fails.
func (s *OrderService) GetOrderDetails(ctx context.Context, id string) (*models.OrderDetails, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &models.OrderDetails{Order: order.WithDisplayTotal()}

	if s.customers != nil {
		customer, err := s.customers.GetCustomer(ctx, order.CustomerID)
		if err != nil {
			s.logger.Warn("Failed to expand order customer", logging.Fields{
				"order_id":    order.ID,
				"customer_id": order.CustomerID,
				"error":       err,
			})
		} else {
			details.Customer = customer
		}
	}

	if s.catalog != nil && len(order.LineItems) > 0 {
		ids := make([]string, 0, len(order.LineItems))
		for _, item := range order.LineItems {
			ids = append(ids, item.ProductID)
		}
		products, err := s.catalog.GetProductSummaries(ctx, ids)
		if err != nil {
			s.logger.Warn("Failed to expand order products", logging.Fields{
				"order_id": order.ID,
				"error":    err,
			})
		} else {
			details.Products = products
		}
	}

	return details, nil
}

// UpdateStatus assigns a new fulfilment status. Any known status may follow any other.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	status, err := ValidateUpdateOrderStatusRequest(req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updating order status", logging.Fields{
		"order_id":   id,
		"new_status": status,
	})

	current, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get order", err)
	}
	previousStatus := current.Status

	order, err := s.orderRepo.UpdateStatus(ctx, id, status)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		s.logger.Error("Failed to update order status", logging.Fields{
			"order_id": id,
			"error":    err,
		})
		return nil, errors.NewPersistenceError("update order status", err)
	}

	metrics.OrderStatusUpdates.WithLabelValues(string(status)).Inc()
	s.invalidate(ctx, order)

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishOrderStatusChanged(ctx, order, previousStatus); err != nil {
			s.logger.Error("Failed to publish order status changed event", logging.Fields{
				"order_id": order.ID,
				"error":    err,
			})
		}
	}

	s.logger.Info("Order status updated", logging.Fields{
		"order_id":        order.ID,
		"previous_status": previousStatus,
		"new_status":      order.Status,
	})

	return order, nil
}

// DeleteOrder removes an order permanently.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	s.logger.Info("Deleting order", logging.Fields{"order_id": id})

	order, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if err != nil {
		return errors.NewPersistenceError("get order", err)
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return err
		}
		return errors.NewPersistenceError("delete order", err)
	}

	s.invalidate(ctx, order)

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishOrderDeleted(ctx, order); err != nil {
			s.logger.Error("Failed to publish order deleted event", logging.Fields{
				"order_id": order.ID,
				"error":    err,
			})
		}
	}

	return nil
}

func (s *OrderService) invalidate(ctx context.Context, order *models.Order) {
	if !s.config.Features.EnableOrderCaching {
		return
	}
	if err := s.orderCache.Delete(ctx, order.ID); err != nil {
		s.logger.Error("Failed to evict cached order", logging.Fields{
			"order_id": order.ID,
			"error":    err,
		})
	}
	if err := s.orderCache.InvalidateByCustomerID(ctx, order.CustomerID); err != nil {
		s.logger.Error("Failed to invalidate customer order cache", logging.Fields{
			"customer_id": order.CustomerID,
			"error":       err,
		})
	}
}
