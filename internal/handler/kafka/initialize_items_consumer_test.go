package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bulkops/internal/domain"
	"bulkops/internal/idempotency"
	redisinbox "bulkops/internal/repository/inbox_repo/redis"
)

type mockInitializer struct {
	mock.Mock
}

func (m *mockInitializer) InitializeItems(ctx context.Context, msg domain.InitializeItemsRequest) error {
	return m.Called(ctx, msg).Error(0)
}

func newGuard(t *testing.T) *idempotency.Guard {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return idempotency.NewGuard(redisinbox.NewInboxRepository(client, time.Hour), zap.NewNop())
}

func initializeMessage(key string) kafka.Message {
	return kafka.Message{
		Topic: "bulkops.initialize-items",
		Key:   []byte("op-1"),
		Value: []byte(`{"bulkOperationRequest":{"operationType":"UPDATE"},"bulkOperationResponse":{"id":"op-1","substatus":"PENDING"},"contextInfo":{"tenantId":"t1"}}`),
		Headers: []kafka.Header{
			{Key: domain.HeaderIdempotencyKey, Value: []byte(key)},
			{Key: domain.HeaderMessageType, Value: []byte(domain.MessageTypeInitializeItems)},
		},
	}
}

func TestInitializeItemsMessageHandler_RunsOncePerKey(t *testing.T) {
	initializer := new(mockInitializer)
	initializer.On("InitializeItems", mock.Anything, mock.MatchedBy(func(r domain.InitializeItemsRequest) bool {
		return r.BulkOperationResponse.ID == "op-1" &&
			r.BulkOperationRequest.OperationType == "UPDATE" &&
			r.ContextInfo.TenantID == "t1"
	})).Return(nil).Once()

	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.NewNop())

	require.NoError(t, handler(context.Background(), initializeMessage("op-1")))
	require.NoError(t, handler(context.Background(), initializeMessage("op-1")))
	initializer.AssertExpectations(t)
}

func TestInitializeItemsMessageHandler_FailureIsRedelivered(t *testing.T) {
	pipelineErr := &domain.ProviderAPIError{Method: "GET", URL: "/search", StatusCode: 503}
	initializer := new(mockInitializer)
	initializer.On("InitializeItems", mock.Anything, mock.Anything).Return(pipelineErr).Once()
	initializer.On("InitializeItems", mock.Anything, mock.Anything).Return(nil).Once()

	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.NewNop())

	assert.ErrorIs(t, handler(context.Background(), initializeMessage("op-1")), domain.ErrProviderAPI)
	assert.NoError(t, handler(context.Background(), initializeMessage("op-1")))
	initializer.AssertNumberOfCalls(t, "InitializeItems", 2)
}

func TestInitializeItemsMessageHandler_FallsBackToMessageKey(t *testing.T) {
	initializer := new(mockInitializer)
	initializer.On("InitializeItems", mock.Anything, mock.Anything).Return(nil).Once()
	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.NewNop())

	msg := initializeMessage("")
	msg.Headers = nil
	require.NoError(t, handler(context.Background(), msg))
	require.NoError(t, handler(context.Background(), msg))
	initializer.AssertExpectations(t)
}

func TestInitializeItemsMessageHandler_MalformedPayloadIsDropped(t *testing.T) {
	initializer := new(mockInitializer)
	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.NewNop())

	msg := initializeMessage("op-1")
	msg.Value = []byte(`not json`)

	assert.NoError(t, handler(context.Background(), msg))
	initializer.AssertNotCalled(t, "InitializeItems", mock.Anything, mock.Anything)
}

func TestInitializeItemsMessageHandler_ContractViolationRaisesAlert(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	initializer := new(mockInitializer)
	initializer.On("InitializeItems", mock.Anything, mock.Anything).
		Return(&domain.ContractViolationError{Reason: "search returned no body"})

	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.New(core))
	err := handler(context.Background(), initializeMessage("op-1"))

	assert.ErrorIs(t, err, domain.ErrContractViolation)
	alerts := logs.FilterField(zap.Bool("alert", true)).All()
	require.Len(t, alerts, 1)
	assert.Equal(t, "op-1", alerts[0].ContextMap()["bulk_operation_id"])
}

func TestInitializeItemsMessageHandler_GuardError(t *testing.T) {
	guard := guardFunc(func(ctx context.Context, msg idempotency.Message, handlerName string, body idempotency.Body) error {
		return errors.New("inbox unavailable")
	})
	handler := InitializeItemsMessageHandler(guard, new(mockInitializer), zap.NewNop())

	assert.ErrorContains(t, handler(context.Background(), initializeMessage("op-1")), "inbox unavailable")
}

type guardFunc func(ctx context.Context, msg idempotency.Message, handlerName string, body idempotency.Body) error

func (f guardFunc) Consume(ctx context.Context, msg idempotency.Message, handlerName string, body idempotency.Body) error {
	return f(ctx, msg, handlerName, body)
}

func TestInitializeItemsMessageHandler_UnknownSubstatusStillRuns(t *testing.T) {
	initializer := new(mockInitializer)
	initializer.On("InitializeItems", mock.Anything, mock.MatchedBy(func(r domain.InitializeItemsRequest) bool {
		return r.BulkOperationResponse.ID == "op-7" && r.BulkOperationResponse.Substatus == domain.SubstatusUnspecified
	})).Return(nil).Once()

	msg := initializeMessage("op-7")
	msg.Value = []byte(`{"bulkOperationRequest":{"operationType":"UPDATE"},"bulkOperationResponse":{"id":"op-7","substatus":"ARCHIVING"}}`)

	handler := InitializeItemsMessageHandler(newGuard(t), initializer, zap.NewNop())

	require.NoError(t, handler(context.Background(), msg))
	initializer.AssertExpectations(t)
}
