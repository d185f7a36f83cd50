package dispatch

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bulkops/internal/domain"
	kafka_infra "bulkops/internal/infrastructure/kafka"
	"bulkops/internal/repository/outbox_repo/postgres"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, key, topic string, value []byte, headers ...kafka.Header) error {
	args := m.Called(ctx, key, topic, value, headers)
	return args.Error(0)
}

func (m *mockProducer) Close() error { return nil }

var testTopics = Topics{
	domain.MessageTypeCreateSandbox:   "bulkops.sandbox",
	domain.MessageTypeInitializeItems: "bulkops.initialize-items",
	domain.MessageTypeProcess:         "bulkops.process",
}

func TestNewSender_Selection(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewOutboxRepository()
	producer := new(mockProducer)

	assert.IsType(t, &DurableChannel{}, NewSender("postgres", db, repo, producer, testTopics, zap.NewNop()))
	assert.IsType(t, &BestEffortChannel{}, NewSender(ProviderNone, db, repo, producer, testTopics, zap.NewNop()))
	assert.IsType(t, &BestEffortChannel{}, NewSender("postgres", nil, nil, producer, testTopics, zap.NewNop()))
}

func TestDurableChannel_Send(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_messages")).
		WithArgs(sqlmock.AnyArg(), "BULK_OPS_PROCESS_REQUEST", "bulkops.process", "op-1", domain.BulkOpsRouteKey,
			[]byte(`{"bulkOperationId":"op-1","operationType":"UPDATE"}`), "PENDING", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_messages")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ch := NewDurableChannel(db, postgres.NewOutboxRepository(), testTopics, zap.NewNop())
	payload := domain.ProcessRequest{BulkOperationID: "op-1", OperationType: "UPDATE"}

	require.NoError(t, ch.Send(context.Background(), payload, domain.MessageTypeProcess, "op-1", domain.BulkOpsRouteKey))
	require.NoError(t, ch.Send(context.Background(), payload, domain.MessageTypeProcess, "op-1", domain.BulkOpsRouteKey))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestDurableChannel_UnknownTopic(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ch := NewDurableChannel(db, postgres.NewOutboxRepository(), Topics{}, zap.NewNop())
	err = ch.Send(context.Background(), struct{}{}, domain.MessageTypeProcess, "op-1", domain.BulkOpsRouteKey)
	assert.ErrorContains(t, err, "no topic configured")
}

func TestBestEffortChannel_Send(t *testing.T) {
	producer := new(mockProducer)
	producer.On("Produce", mock.Anything, "op-1", "bulkops.initialize-items", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			headers := args.Get(4).([]kafka.Header)
			assert.Equal(t, "op-1", kafka_infra.HeaderValue(headers, domain.HeaderIdempotencyKey))
			assert.Equal(t, string(domain.MessageTypeInitializeItems), kafka_infra.HeaderValue(headers, domain.HeaderMessageType))
			assert.Equal(t, domain.BulkOpsRouteKey, kafka_infra.HeaderValue(headers, domain.HeaderRouteKey))
		}).
		Return(nil)

	ch := NewBestEffortChannel(producer, testTopics, zap.NewNop())
	err := ch.Send(context.Background(), domain.InitializeItemsRequest{}, domain.MessageTypeInitializeItems, "op-1", domain.BulkOpsRouteKey)

	require.NoError(t, err)
	producer.AssertExpectations(t)
}

func TestBestEffortChannel_PropagatesPublishError(t *testing.T) {
	producer := new(mockProducer)
	producer.On("Produce", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker unavailable"))

	ch := NewBestEffortChannel(producer, testTopics, zap.NewNop())
	err := ch.Send(context.Background(), domain.ProcessRequest{}, domain.MessageTypeProcess, "op-1", domain.BulkOpsRouteKey)
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestSend_RequiresIdempotencyKey(t *testing.T) {
	ch := NewBestEffortChannel(new(mockProducer), testTopics, zap.NewNop())
	err := ch.Send(context.Background(), domain.ProcessRequest{}, domain.MessageTypeProcess, "", domain.BulkOpsRouteKey)
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}
