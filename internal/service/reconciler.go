package service

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
)

// Reconciler finds card payments that were captured but never turned into
// an order, which happens when the order write fails after payment.
type Reconciler struct {
	captures repository.PaymentCaptureRepository
	orders   repository.OrderRepository
	cfg      config.ReconciliationConfig
	logger   *logging.LoggerV2
	now      func() time.Time
}

func NewReconciler(captures repository.PaymentCaptureRepository, orders repository.OrderRepository, cfg config.ReconciliationConfig) *Reconciler {
	return &Reconciler{
		captures: captures,
		orders:   orders,
		cfg:      cfg,
		logger:   logging.NewLoggerV2("reconciler"),
		now:      time.Now,
	}
}

// Run sweeps on every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("Reconciler started", logging.Fields{
		"interval":     r.cfg.Interval.String(),
		"grace_period": r.cfg.GracePeriod.String(),
	})

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Reconciliation sweep failed", logging.Fields{"error": err})
			}
		}
	}
}

// Sweep checks captures older than the grace period. Captures whose order
// exists are linked to it; the rest are reported. It returns the number of
// orphaned captures found.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	before := r.now().UTC().Add(-r.cfg.GracePeriod)

	pending, err := r.captures.ListUnreconciled(ctx, before, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	orphaned := 0
	for _, capture := range pending {
		order, err := r.orders.GetByIdempotencyKey(ctx, capture.IntentID)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			orphaned++
			r.logger.Warn("Captured payment has no order", logging.Fields{
				"intent_id":   capture.IntentID,
				"amount":      capture.Amount,
				"currency":    capture.Currency,
				"captured_at": capture.CapturedAt,
			})
		case err != nil:
			return orphaned, err
		default:
			if err := r.link(ctx, capture, order); err != nil {
				return orphaned, err
			}
		}
	}

	metrics.UnreconciledPayments.Set(float64(orphaned))
	if orphaned > 0 {
		r.logger.Warn("Reconciliation sweep found orphaned captures", logging.Fields{
			"orphaned": orphaned,
			"checked":  len(pending),
		})
	}

	return orphaned, nil
}

func (r *Reconciler) link(ctx context.Context, capture *models.PaymentCapture, order *models.Order) error {
	capture.OrderID = order.ID
	if err := r.captures.MarkReconciled(ctx, capture); err != nil {
		return err
	}
	r.logger.Info("Linked capture to order", logging.Fields{
		"intent_id": capture.IntentID,
		"order_id":  order.ID,
	})
	return nil
}
