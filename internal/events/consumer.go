package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// PaymentEventHandler applies payment events read from the payments topic.
type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// KafkaConsumer consumes payment events from Kafka. An offset is committed
// only once its event was handled or found unusable, so a failed capture
// write is retried instead of skipped.
type KafkaConsumer struct {
	reader     messageReader
	handler    PaymentEventHandler
	logger     *logging.LoggerV2
	retryDelay time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, handler PaymentEventHandler, logger *logging.LoggerV2) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newKafkaConsumer(reader, handler, logger)
}

func newKafkaConsumer(reader messageReader, handler PaymentEventHandler, logger *logging.LoggerV2) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		retryDelay: defaultRetryDelay,
		stopCh:     make(chan struct{}),
	}
}

// Start consumes events until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if c.stopped() {
					c.logger.Info("Kafka consumer stopped")
					return nil
				}
				c.logger.Error("Failed to fetch message", logging.Fields{"error": err})
				continue
			}

			if !c.handleWithRetry(ctx, msg) {
				// Left uncommitted; the group redelivers it after a restart.
				c.logger.Info("Kafka consumer stopped")
				return ctx.Err()
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit message", logging.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
					"error":     err,
				})
			}
		}
	}
}

// handleWithRetry handles msg until it succeeds, backing off between
// attempts. It returns false if the consumer is stopped first.
func (c *KafkaConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return true
		}

		c.logger.Error("Failed to handle payment event", logging.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"attempt":   attempt,
			"error":     err,
		})

		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *KafkaConsumer) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Stop stops the consumer. It is safe to call more than once.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close Kafka reader", logging.Fields{"error": err})
		}
	})
}

// handleMessage returns an error only for failures worth retrying. Malformed
// events are logged and dropped.
func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event models.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err})
		return nil
	}

	if event.IntentID == "" {
		c.logger.Warn("Ignoring payment event without intent", logging.Fields{"event_id": event.ID})
		return nil
	}

	if err := c.handler.HandlePaymentEvent(ctx, &event); err != nil {
		return fmt.Errorf("event %s for intent %s: %w", event.ID, event.IntentID, err)
	}
	return nil
}
