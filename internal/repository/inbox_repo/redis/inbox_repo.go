package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bulkops/internal/domain"
	"bulkops/internal/repository/inbox_repo"
	"bulkops/internal/util"
)

const keyPrefix = "bulkops:inbox:"

// acquireScript moves a key to PROCESSING unless it is already PROCESSED.
// KEYS[1] inbox key; ARGV[1] ttl ms; ARGV[2] row id; ARGV[3] received at.
var acquireScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'PROCESSED' then
	return 0
end
if not status then
	redis.call('HSET', KEYS[1], 'id', ARGV[2], 'received_at', ARGV[3])
end
redis.call('HSET', KEYS[1], 'status', 'PROCESSING', 'last_error', '')
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

// InboxRepository keeps inbox entries as Redis hashes that expire after ttl.
// Retention is handled by Redis itself.
type InboxRepository struct {
	client goredis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewInboxRepository(client goredis.UniversalClient, ttl time.Duration) *InboxRepository {
	return &InboxRepository{client: client, ttl: ttl, now: time.Now}
}

var _ inbox_repo.InboxRepository = (*InboxRepository)(nil)

func inboxKey(handlerName, idempotencyKey string) string {
	return keyPrefix + handlerName + ":" + idempotencyKey
}

func (r *InboxRepository) Acquire(ctx context.Context, handlerName, idempotencyKey string) error {
	acquired, err := acquireScript.Run(ctx, r.client,
		[]string{inboxKey(handlerName, idempotencyKey)},
		r.ttl.Milliseconds(),
		util.GenerateUUID(),
		r.now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to acquire inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	if acquired == 0 {
		return inbox_repo.ErrMessageAlreadyProcessed
	}
	return nil
}

func (r *InboxRepository) MarkProcessed(ctx context.Context, handlerName, idempotencyKey string) error {
	return r.update(ctx, handlerName, idempotencyKey,
		"status", string(domain.InboxStatusProcessed),
		"processed_at", r.now().UTC().Format(time.RFC3339Nano),
	)
}

func (r *InboxRepository) MarkFailed(ctx context.Context, handlerName, idempotencyKey string, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	return r.update(ctx, handlerName, idempotencyKey,
		"status", string(domain.InboxStatusFailed),
		"last_error", lastError,
	)
}

func (r *InboxRepository) update(ctx context.Context, handlerName, idempotencyKey string, values ...any) error {
	key := inboxKey(handlerName, idempotencyKey)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	if exists == 0 {
		return fmt.Errorf("inbox message %s/%s: %w", handlerName, idempotencyKey, inbox_repo.ErrMessageNotFound)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.PExpire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	return nil
}

func (r *InboxRepository) GetMessage(ctx context.Context, handlerName, idempotencyKey string) (*domain.InboxMessage, error) {
	fields, err := r.client.HGetAll(ctx, inboxKey(handlerName, idempotencyKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	if len(fields) == 0 {
		return nil, inbox_repo.ErrMessageNotFound
	}

	msg := &domain.InboxMessage{
		ID:             fields["id"],
		HandlerName:    handlerName,
		IdempotencyKey: idempotencyKey,
		Status:         domain.InboxMessageStatus(fields["status"]),
		LastError:      fields["last_error"],
	}
	if msg.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("invalid attempts for inbox message %s/%s: %w", handlerName, idempotencyKey, err)
	}
	if v := fields["received_at"]; v != "" {
		if msg.ReceivedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("invalid received_at for inbox message %s/%s: %w", handlerName, idempotencyKey, err)
		}
	}
	if v := fields["processed_at"]; v != "" {
		processedAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid processed_at for inbox message %s/%s: %w", handlerName, idempotencyKey, err)
		}
		msg.ProcessedAt = &processedAt
	}
	return msg, nil
}

// DeleteProcessedBefore is a no-op: entries expire through their TTL.
func (r *InboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// Ping verifies connectivity at startup.
func Ping(ctx context.Context, client goredis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
