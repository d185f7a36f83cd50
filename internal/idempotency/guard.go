package idempotency

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bulkops/internal/repository/inbox_repo"
)

var ErrMissingIdempotencyKey = errors.New("message has no idempotency key")

// Message is a consumed message as seen by the guard.
type Message struct {
	IdempotencyKey string
	MessageType    string
	Payload        []byte
}

// Body is the side-effecting work guarded by an idempotency key.
type Body func(ctx context.Context, msg Message) error

// Guard runs a handler body at most once to successful completion per
// (handler name, idempotency key). A failed body leaves the key open so a
// redelivery re-runs it from the start.
type Guard struct {
	inboxRepo inbox_repo.InboxRepository
	logger    *zap.Logger
}

func NewGuard(inboxRepo inbox_repo.InboxRepository, logger *zap.Logger) *Guard {
	return &Guard{inboxRepo: inboxRepo, logger: logger}
}

func (g *Guard) Consume(ctx context.Context, msg Message, handlerName string, body Body) error {
	if msg.IdempotencyKey == "" {
		return fmt.Errorf("%s: %w", handlerName, ErrMissingIdempotencyKey)
	}

	log := g.logger.With(
		zap.String("handler", handlerName),
		zap.String("idempotency_key", msg.IdempotencyKey),
	)

	err := g.inboxRepo.Acquire(ctx, handlerName, msg.IdempotencyKey)
	if errors.Is(err, inbox_repo.ErrMessageAlreadyProcessed) {
		log.Info("Message already processed, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register message in inbox: %w", err)
	}

	if bodyErr := body(ctx, msg); bodyErr != nil {
		log.Warn("Message handling failed, key left open for redelivery", zap.Error(bodyErr))
		if markErr := g.inboxRepo.MarkFailed(ctx, handlerName, msg.IdempotencyKey, bodyErr); markErr != nil {
			log.Error("Failed to mark inbox message as failed", zap.Error(markErr))
		}
		return bodyErr
	}

	if err := g.inboxRepo.MarkProcessed(ctx, handlerName, msg.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to mark inbox message as processed: %w", err)
	}
	log.Debug("Message processed")
	return nil
}
