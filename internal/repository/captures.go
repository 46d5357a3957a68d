package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// PostgresPaymentCaptureRepository stores processor captures in payment_captures.
type PostgresPaymentCaptureRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresPaymentCaptureRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresPaymentCaptureRepository {
	return &PostgresPaymentCaptureRepository{db: db, logger: logger}
}

func (r *PostgresPaymentCaptureRepository) Record(ctx context.Context, capture *models.PaymentCapture) error {
	query := `
		INSERT INTO payment_captures (intent_id, amount, currency, captured_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (intent_id) DO UPDATE
		SET amount = EXCLUDED.amount, currency = EXCLUDED.currency
	`

	_, err := r.db.ExecContext(ctx, query, capture.IntentID, capture.Amount, capture.Currency, capture.CapturedAt)
	if err != nil {
		r.logger.Error("Failed to record payment capture", logging.Fields{
			"intent_id": capture.IntentID,
			"error":     err.Error(),
		})
		return err
	}

	r.logger.Debug("Payment capture recorded", logging.Fields{"intent_id": capture.IntentID})
	return nil
}

func (r *PostgresPaymentCaptureRepository) MarkReconciled(ctx context.Context, capture *models.PaymentCapture) error {
	reconciledAt := time.Now().UTC()
	if capture.ReconciledAt != nil {
		reconciledAt = *capture.ReconciledAt
	}

	query := `
		INSERT INTO payment_captures (intent_id, amount, currency, captured_at, order_id, reconciled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (intent_id) DO UPDATE
		SET order_id = EXCLUDED.order_id, reconciled_at = EXCLUDED.reconciled_at
	`

	_, err := r.db.ExecContext(ctx, query,
		capture.IntentID,
		capture.Amount,
		capture.Currency,
		capture.CapturedAt,
		capture.OrderID,
		reconciledAt,
	)
	if err != nil {
		return err
	}

	capture.ReconciledAt = &reconciledAt
	return nil
}

func (r *PostgresPaymentCaptureRepository) ListUnreconciled(ctx context.Context, capturedBefore time.Time, limit int) ([]*models.PaymentCapture, error) {
	query := `
		SELECT intent_id, amount, currency, captured_at
		FROM payment_captures
		WHERE reconciled_at IS NULL AND captured_at < $1
		ORDER BY captured_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, capturedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captures := make([]*models.PaymentCapture, 0)
	for rows.Next() {
		var c models.PaymentCapture
		if err := rows.Scan(&c.IntentID, &c.Amount, &c.Currency, &c.CapturedAt); err != nil {
			return nil, err
		}
		captures = append(captures, &c)
	}
	return captures, rows.Err()
}
