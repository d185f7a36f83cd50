package bulkops

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bulkops/internal/domain"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) CreateBulkOperation(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error) {
	args := m.Called(ctx, req, ctxInfo)
	if out := args.Get(0); out != nil {
		return out.(*domain.BulkOperationResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalog) GetSupportedBulkOperations(ctx context.Context, operationType, entityType string) ([]domain.SupportedBulkOperation, error) {
	args := m.Called(ctx, operationType, entityType)
	if out := args.Get(0); out != nil {
		return out.([]domain.SupportedBulkOperation), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, payload any, messageType domain.MessageType, idempotencyKey, routeKey string) error {
	args := m.Called(ctx, payload, messageType, idempotencyKey, routeKey)
	return args.Error(0)
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) CanHandle(ctx context.Context, operationType, entityType string) (bool, error) {
	args := m.Called(ctx, operationType, entityType)
	return args.Bool(0), args.Error(1)
}

func (m *mockHandler) Handle(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error) {
	args := m.Called(ctx, req, ctxInfo)
	if out := args.Get(0); out != nil {
		return out.(*domain.BulkOperationResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type staticIDs string

func (s staticIDs) NextULID() string { return string(s) }
