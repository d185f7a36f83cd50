package inbox_repo

import (
	"context"
	"errors"
	"time"

	"bulkops/internal/domain"
)

// InboxRepository is the durable dedup store behind the idempotency guard.
// Rows are keyed by (handler name, idempotency key).
type InboxRepository interface {
	// Acquire records a new attempt for the key. It returns
	// ErrMessageAlreadyProcessed when the key has already been completed.
	Acquire(ctx context.Context, handlerName, idempotencyKey string) error
	MarkProcessed(ctx context.Context, handlerName, idempotencyKey string) error
	MarkFailed(ctx context.Context, handlerName, idempotencyKey string, cause error) error
	GetMessage(ctx context.Context, handlerName, idempotencyKey string) (*domain.InboxMessage, error)
	// DeleteProcessedBefore drops completed keys older than the cutoff.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	ErrMessageAlreadyProcessed = errors.New("inbox message already processed")
	ErrMessageNotFound         = errors.New("inbox message not found")
)
