// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Events are JSON on the wire; consumers hand each
// message to a MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/resilience"
)

const handlerAttempts = 3

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// reader is the part of *kafka.Reader the consume loop needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic and hands every message to a MessageHandler. A
// message whose handler keeps failing is logged and committed so one bad
// event cannot stall the partition.
type Consumer struct {
	reader  reader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the given topic and handler. Consumers
// sharing groupID split the topic's messages between them; a replica that
// must see every message uses a group of its own. A new group starts at
// the end of the topic: reload events from before startup are stale.
func NewConsumer(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, handler, slog.Default().With("component", "kafka-consumer", "topic", topic, "group", groupID))
}

func newConsumer(r reader, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  handlerAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		logger: logger,
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	err := resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil {
		c.logger.Error("dropping message after handler failures",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Close closes the underlying reader. Start already does this on exit.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
