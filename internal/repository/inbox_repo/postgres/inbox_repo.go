package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bulkops/internal/domain"
	"bulkops/internal/repository/inbox_repo"
	"bulkops/internal/util"
)

type InboxRepository struct {
	db  domain.Querier
	now func() time.Time
}

func NewInboxRepository(db domain.Querier) *InboxRepository {
	return &InboxRepository{db: db, now: time.Now}
}

var _ inbox_repo.InboxRepository = (*InboxRepository)(nil)

func (r *InboxRepository) Acquire(ctx context.Context, handlerName, idempotencyKey string) error {
	query := `
		INSERT INTO inbox_messages (id, handler_name, idempotency_key, status, attempts, received_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (handler_name, idempotency_key) DO UPDATE
		SET status = EXCLUDED.status, attempts = inbox_messages.attempts + 1, last_error = NULL
		WHERE inbox_messages.status <> 'PROCESSED'
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		util.GenerateUUID(),
		handlerName,
		idempotencyKey,
		domain.InboxStatusProcessing,
		r.now(),
	).Scan(&id)
	if err != nil {
		// The conflict update is filtered out only for completed keys.
		if errors.Is(err, sql.ErrNoRows) {
			return inbox_repo.ErrMessageAlreadyProcessed
		}
		return fmt.Errorf("failed to acquire inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	return nil
}

func (r *InboxRepository) MarkProcessed(ctx context.Context, handlerName, idempotencyKey string) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, processed_at = $2
		WHERE handler_name = $3 AND idempotency_key = $4
	`
	return r.updateStatus(ctx, query, handlerName, idempotencyKey, domain.InboxStatusProcessed, r.now())
}

func (r *InboxRepository) MarkFailed(ctx context.Context, handlerName, idempotencyKey string, cause error) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, last_error = $2
		WHERE handler_name = $3 AND idempotency_key = $4
	`
	var lastError sql.NullString
	if cause != nil {
		lastError = sql.NullString{String: cause.Error(), Valid: true}
	}
	return r.updateStatus(ctx, query, handlerName, idempotencyKey, domain.InboxStatusFailed, lastError)
}

func (r *InboxRepository) updateStatus(ctx context.Context, query, handlerName, idempotencyKey string, status domain.InboxMessageStatus, arg any) error {
	res, err := r.db.ExecContext(ctx, query, string(status), arg, handlerName, idempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to update inbox message %s/%s to %s: %w", handlerName, idempotencyKey, status, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox message update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s/%s: %w", handlerName, idempotencyKey, inbox_repo.ErrMessageNotFound)
	}
	return nil
}

func (r *InboxRepository) GetMessage(ctx context.Context, handlerName, idempotencyKey string) (*domain.InboxMessage, error) {
	query := `
		SELECT id, handler_name, idempotency_key, status, attempts, last_error, received_at, processed_at
		FROM inbox_messages
		WHERE handler_name = $1 AND idempotency_key = $2
	`
	msg := &domain.InboxMessage{}
	var lastError sql.NullString
	var processedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, handlerName, idempotencyKey).Scan(
		&msg.ID,
		&msg.HandlerName,
		&msg.IdempotencyKey,
		&msg.Status,
		&msg.Attempts,
		&lastError,
		&msg.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inbox_repo.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	msg.LastError = lastError.String
	if processedAt.Valid {
		msg.ProcessedAt = &processedAt.Time
	}
	return msg, nil
}

func (r *InboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM inbox_messages
		WHERE status = $1 AND processed_at < $2
	`
	res, err := r.db.ExecContext(ctx, query, domain.InboxStatusProcessed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed inbox messages: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for inbox cleanup: %w", err)
	}
	return deleted, nil
}
