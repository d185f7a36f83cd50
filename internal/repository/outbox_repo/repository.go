package outbox_repo

import (
	"context"

	"bulkops/internal/domain"
)

// OutboxRepository stores messages that must reach Kafka. Messages are unique
// per (message type, idempotency key); writing a duplicate is a no-op.
type OutboxRepository interface {
	CreateMessage(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) (bool, error)
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error
	MarkMessagesAsFailed(ctx context.Context, querier domain.Querier, ids []string) error
}
