package idempotency

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"bulkops/internal/domain"
)

type mockInboxRepository struct {
	mock.Mock
}

func (m *mockInboxRepository) Acquire(ctx context.Context, handlerName, idempotencyKey string) error {
	args := m.Called(ctx, handlerName, idempotencyKey)
	return args.Error(0)
}

func (m *mockInboxRepository) MarkProcessed(ctx context.Context, handlerName, idempotencyKey string) error {
	args := m.Called(ctx, handlerName, idempotencyKey)
	return args.Error(0)
}

func (m *mockInboxRepository) MarkFailed(ctx context.Context, handlerName, idempotencyKey string, cause error) error {
	args := m.Called(ctx, handlerName, idempotencyKey, cause)
	return args.Error(0)
}

func (m *mockInboxRepository) GetMessage(ctx context.Context, handlerName, idempotencyKey string) (*domain.InboxMessage, error) {
	args := m.Called(ctx, handlerName, idempotencyKey)
	if msg := args.Get(0); msg != nil {
		return msg.(*domain.InboxMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
