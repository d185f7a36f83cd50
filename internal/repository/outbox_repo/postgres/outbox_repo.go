package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bulkops/internal/domain"
	"bulkops/internal/repository/outbox_repo"
)

type OutboxRepository struct {
	now func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{now: time.Now}
}

var _ outbox_repo.OutboxRepository = (*OutboxRepository)(nil)

// CreateMessage reports whether a new row was written.
func (r *OutboxRepository) CreateMessage(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) (bool, error) {
	query := `
		INSERT INTO outbox_messages (id, message_type, topic, idempotency_key, route_key, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_type, idempotency_key) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		msg.ID,
		string(msg.MessageType),
		msg.Topic,
		msg.IdempotencyKey,
		msg.RouteKey,
		msg.Payload,
		string(msg.Status),
		msg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create outbox message: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for outbox insert: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetPendingMessages locks up to limit unsent messages for the caller's
// transaction. Messages whose last publish failed are retried.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, message_type, topic, idempotency_key, route_key, payload, status, created_at, sent_at
		FROM outbox_messages
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	rows, err := querier.QueryContext(ctx, query, string(domain.OutboxStatusPending), string(domain.OutboxStatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var sentAt sql.NullTime
		err := rows.Scan(
			&msg.ID,
			&msg.MessageType,
			&msg.Topic,
			&msg.IdempotencyKey,
			&msg.RouteKey,
			&msg.Payload,
			&msg.Status,
			&msg.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

func (r *OutboxRepository) MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2
		WHERE id = ANY($3)
	`
	res, err := querier.ExecContext(ctx, query, string(domain.OutboxStatusSent), r.now(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark outbox messages as sent: %w", err)
	}
	return checkAllUpdated(res, len(ids), "sent")
}

func (r *OutboxRepository) MarkMessagesAsFailed(ctx context.Context, querier domain.Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = NULL
		WHERE id = ANY($2)
	`
	res, err := querier.ExecContext(ctx, query, string(domain.OutboxStatusFailed), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark outbox messages as failed: %w", err)
	}
	return checkAllUpdated(res, len(ids), "failed")
}

func checkAllUpdated(res sql.Result, expected int, status string) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox %s: %w", status, err)
	}
	if rowsAffected != int64(expected) {
		return fmt.Errorf("not all outbox messages were marked as %s; expected %d, got %d", status, expected, rowsAffected)
	}
	return nil
}
