package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler handles one Kafka message. A returned error keeps the
// offset uncommitted and the same message is delivered again.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaConsumer struct {
	reader  messageReader
	logger  *zap.Logger
	topic   string
	groupID string
	backOff func() backoff.BackOff

	stop     chan struct{}
	stopOnce sync.Once
}

func NewConsumer(brokerURLs []string, groupID, topic string, logger *zap.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                brokerURLs,
		GroupID:                groupID,
		Topic:                  topic,
		MinBytes:               1,
		MaxBytes:               10e6,
		ReadBatchTimeout:       1 * time.Second,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
		HeartbeatInterval:      3 * time.Second,
		CommitInterval:         0,
		PartitionWatchInterval: 5 * time.Second,
		MaxAttempts:            3,
	})

	return newConsumer(reader, groupID, topic, logger)
}

func newConsumer(reader messageReader, groupID, topic string, logger *zap.Logger) *kafkaConsumer {
	return &kafkaConsumer{
		reader:  reader,
		logger:  logger,
		topic:   topic,
		groupID: groupID,
		stop:    make(chan struct{}),
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Start consumes until ctx is cancelled or Stop is called. Messages of a
// partition are handled strictly in order: a failing message is redelivered
// with exponential backoff until it succeeds, and only then committed.
func (c *kafkaConsumer) Start(ctx context.Context, handler MessageHandler) error {
	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-consumerCtx.Done():
		}
	}()

	c.logger.Info("Kafka consumer starting", zap.String("topic", c.topic), zap.String("group_id", c.groupID))

	for {
		select {
		case <-c.stop:
			c.logger.Info("Kafka consumer stopping", zap.String("topic", c.topic))
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(consumerCtx)
		if err != nil {
			if consumerCtx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("Kafka consumer stopping", zap.String("topic", c.topic))
				return c.reader.Close()
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			select {
			case <-consumerCtx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		c.logger.Debug("Received Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		if err := c.handle(consumerCtx, msg, handler); err != nil {
			c.logger.Info("Kafka consumer stopping before message was handled; offset left uncommitted",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return c.reader.Close()
		}

		if commitErr := c.reader.CommitMessages(consumerCtx, msg); commitErr != nil {
			c.logger.Error("Failed to commit offset for Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(commitErr),
			)
			continue
		}
		c.logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// handle returns an error only when ctx ends before the handler succeeded.
func (c *kafkaConsumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	attempt := 0
	operation := func() error {
		attempt++
		return handler(ctx, msg)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Error("Error handling Kafka message, redelivering",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(c.backOff(), ctx), notify)
	if err != nil && ctx.Err() == nil {
		// Permanent errors are acknowledged and dropped.
		c.logger.Error("Dropping Kafka message after permanent error",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// Stop ends Start, including a Start that has not been called yet.
func (c *kafkaConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.logger.Info("Kafka consumer stop signal sent.")
}
