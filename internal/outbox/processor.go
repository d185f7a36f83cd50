package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bulkops/internal/domain"
	kafka_infra "bulkops/internal/infrastructure/kafka"
	"bulkops/internal/repository/outbox_repo"
)

// Processor relays outbox rows to Kafka. A row is marked SENT only after the
// brokers acknowledged it; rows that fail to publish are retried next poll.
type Processor struct {
	db            *sql.DB
	outboxRepo    outbox_repo.OutboxRepository
	kafkaProducer kafka_infra.Producer
	batchSize     int
	pollInterval  time.Duration
	pollTimeout   time.Duration
	logger        *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	kafkaProducer kafka_infra.Producer,
	batchSize int,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:            db,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		batchSize:     batchSize,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		logger:        logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessOutboxMessages(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to process outbox messages", zap.Error(err))
			}
		}
	}
}

// ProcessOutboxMessages publishes one batch and returns how many were sent.
func (p *Processor) ProcessOutboxMessages(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer tx.Rollback()

	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, p.batchSize)
	cancel()
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return 0, nil
	}

	p.logger.Info("Found pending outbox messages", zap.Int("count", len(messages)))

	var sent, failed []string
	for _, msg := range messages {
		if err := p.publish(ctx, msg); err != nil {
			p.logger.Error("Failed to send outbox message to Kafka",
				zap.String("message_id", msg.ID),
				zap.String("message_type", string(msg.MessageType)),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			failed = append(failed, msg.ID)
			continue
		}
		sent = append(sent, msg.ID)
	}

	if err := p.outboxRepo.MarkMessagesAsSent(ctx, tx, sent); err != nil {
		return 0, err
	}
	if err := p.outboxRepo.MarkMessagesAsFailed(ctx, tx, failed); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit outbox transaction: %w", err)
	}

	p.logger.Info("Outbox batch processed", zap.Int("sent", len(sent)), zap.Int("failed", len(failed)))
	return len(sent), nil
}

func (p *Processor) publish(ctx context.Context, msg domain.OutboxMessage) error {
	return p.kafkaProducer.Produce(ctx, msg.IdempotencyKey, msg.Topic, msg.Payload,
		Headers(msg.MessageType, msg.IdempotencyKey, msg.RouteKey)...)
}

// Headers builds the metadata headers every dispatched message carries.
func Headers(messageType domain.MessageType, idempotencyKey, routeKey string) []kafka.Header {
	return []kafka.Header{
		{Key: domain.HeaderIdempotencyKey, Value: []byte(idempotencyKey)},
		{Key: domain.HeaderMessageType, Value: []byte(messageType)},
		{Key: domain.HeaderRouteKey, Value: []byte(routeKey)},
	}
}
