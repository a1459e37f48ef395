package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

type Consumer struct {
	reader    *kafka.Reader
	attempts  int
	baseDelay time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})

	return &Consumer{reader: reader, attempts: 5, baseDelay: 500 * time.Millisecond}
}

// Consume hands each event to handler until ctx is cancelled. A failing
// handler is retried with backoff; once the attempts are exhausted the event
// is logged and committed, since a group reader commits past it anyway when
// a later offset is committed.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			_ = c.reader.CommitMessages(ctx, message)
			continue
		}

		if err := handleWithRetry(ctx, handler, event, c.attempts, c.baseDelay); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("Failed to process event, giving up")
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("Failed to commit message")
		}
	}
}

// handleWithRetry runs handler until it succeeds, attempts are exhausted or
// ctx is cancelled. The delay doubles after each failure, capped at 30s.
func handleWithRetry(ctx context.Context, handler EventHandler, event models.Event, attempts int, baseDelay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err = handler(ctx, event); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"attempt":  i + 1,
		}).Warn("Event handler failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
