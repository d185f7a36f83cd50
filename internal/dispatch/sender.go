package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bulkops/internal/domain"
	kafka_infra "bulkops/internal/infrastructure/kafka"
	"bulkops/internal/outbox"
	"bulkops/internal/repository/outbox_repo"
	"bulkops/internal/util"
)

// ProviderNone disables the outbox; messages are then published directly.
const ProviderNone = "none"

var ErrMissingIdempotencyKey = errors.New("dispatch requires an idempotency key")

// Sender publishes a message to the downstream stage owning its message type.
type Sender interface {
	Send(ctx context.Context, payload any, messageType domain.MessageType, idempotencyKey, routeKey string) error
}

// Topics maps each message type to its Kafka topic.
type Topics map[domain.MessageType]string

func (t Topics) topicFor(messageType domain.MessageType) (string, error) {
	topic, ok := t[messageType]
	if !ok || topic == "" {
		return "", fmt.Errorf("no topic configured for message type %s", messageType)
	}
	return topic, nil
}

// NewSender picks the channel once for the lifetime of the process.
func NewSender(
	provider string,
	db domain.Querier,
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka_infra.Producer,
	topics Topics,
	logger *zap.Logger,
) Sender {
	if provider == ProviderNone || db == nil || outboxRepo == nil {
		logger.Info("Using best-effort dispatch channel", zap.String("provider", provider))
		return NewBestEffortChannel(producer, topics, logger)
	}
	logger.Info("Using durable dispatch channel", zap.String("provider", provider))
	return NewDurableChannel(db, outboxRepo, topics, logger)
}

// DurableChannel writes messages to the outbox; the outbox processor
// publishes them.
type DurableChannel struct {
	db         domain.Querier
	outboxRepo outbox_repo.OutboxRepository
	topics     Topics
	logger     *zap.Logger
	now        func() time.Time
}

func NewDurableChannel(db domain.Querier, outboxRepo outbox_repo.OutboxRepository, topics Topics, logger *zap.Logger) *DurableChannel {
	return &DurableChannel{db: db, outboxRepo: outboxRepo, topics: topics, logger: logger, now: time.Now}
}

func (c *DurableChannel) Send(ctx context.Context, payload any, messageType domain.MessageType, idempotencyKey, routeKey string) error {
	topic, value, err := prepare(c.topics, payload, messageType, idempotencyKey)
	if err != nil {
		return err
	}

	msg := &domain.OutboxMessage{
		ID:             util.GenerateUUID(),
		MessageType:    messageType,
		Topic:          topic,
		IdempotencyKey: idempotencyKey,
		RouteKey:       routeKey,
		Payload:        value,
		Status:         domain.OutboxStatusPending,
		CreatedAt:      c.now(),
	}
	inserted, err := c.outboxRepo.CreateMessage(ctx, c.db, msg)
	if err != nil {
		return fmt.Errorf("failed to store %s in outbox: %w", messageType, err)
	}
	if !inserted {
		c.logger.Info("Message already in outbox, ignoring duplicate",
			zap.String("message_type", string(messageType)),
			zap.String("idempotency_key", idempotencyKey))
		return nil
	}
	c.logger.Debug("Message stored in outbox",
		zap.String("message_id", msg.ID),
		zap.String("message_type", string(messageType)),
		zap.String("idempotency_key", idempotencyKey))
	return nil
}

// BestEffortChannel publishes straight to Kafka. A crash between the caller's
// side effects and the publish loses the message.
type BestEffortChannel struct {
	producer kafka_infra.Producer
	topics   Topics
	logger   *zap.Logger
}

func NewBestEffortChannel(producer kafka_infra.Producer, topics Topics, logger *zap.Logger) *BestEffortChannel {
	return &BestEffortChannel{producer: producer, topics: topics, logger: logger}
}

func (c *BestEffortChannel) Send(ctx context.Context, payload any, messageType domain.MessageType, idempotencyKey, routeKey string) error {
	topic, value, err := prepare(c.topics, payload, messageType, idempotencyKey)
	if err != nil {
		return err
	}
	if err := c.producer.Produce(ctx, idempotencyKey, topic, value, outbox.Headers(messageType, idempotencyKey, routeKey)...); err != nil {
		return fmt.Errorf("failed to publish %s: %w", messageType, err)
	}
	return nil
}

func prepare(topics Topics, payload any, messageType domain.MessageType, idempotencyKey string) (string, []byte, error) {
	if idempotencyKey == "" {
		return "", nil, fmt.Errorf("%s: %w", messageType, ErrMissingIdempotencyKey)
	}
	topic, err := topics.topicFor(messageType)
	if err != nil {
		return "", nil, err
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s: %w", messageType, err)
	}
	return topic, value, nil
}
