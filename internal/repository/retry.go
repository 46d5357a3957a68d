package repository

import (
	"context"
	"database/sql/driver"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
)

// RetryConfig bounds retries of a persistence call.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// RetryConfigFrom builds the write retry policy from database settings.
func RetryConfigFrom(cfg config.DatabaseConfig) RetryConfig {
	return RetryConfig{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.JitterEnabled {
		delay *= 0.8 + rand.Float64()*0.4
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// IsRetryableError reports transient failures: lost connections, deadlocks and
// serialization conflicts. Constraint violations are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrConflict) || errors.Is(err, errors.ErrNotFound) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53":
			return true
		case "57":
			return pqErr.Code == "57P01" || pqErr.Code == "57P03"
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}

// ExecuteWithRetry runs fn, retrying retryable failures up to cfg.MaxRetries times.
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryableError(err) || attempt == cfg.MaxRetries {
			break
		}

		if delay := backoff(attempt+1, cfg); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}
