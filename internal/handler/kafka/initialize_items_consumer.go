package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bulkops/internal/domain"
	"bulkops/internal/idempotency"
	kafka_infra "bulkops/internal/infrastructure/kafka"
)

const InitializeItemsHandlerName = "bulk-ops-initialize-items"

type ItemInitializer interface {
	InitializeItems(ctx context.Context, msg domain.InitializeItemsRequest) error
}

type Guard interface {
	Consume(ctx context.Context, msg idempotency.Message, handlerName string, body idempotency.Body) error
}

// InitializeItemsMessageHandler runs the item initialization pipeline for each
// message, at most once to completion per bulk operation.
func InitializeItemsMessageHandler(guard Guard, initializer ItemInitializer, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		key := kafka_infra.HeaderValue(msg.Headers, domain.HeaderIdempotencyKey)
		if key == "" {
			key = string(msg.Key)
		}

		log := logger.With(
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("idempotency_key", key),
		)

		var req domain.InitializeItemsRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			log.Error("Failed to unmarshal InitializeItemsRequest, dropping message",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			return nil
		}

		guarded := idempotency.Message{
			IdempotencyKey: key,
			MessageType:    kafka_infra.HeaderValue(msg.Headers, domain.HeaderMessageType),
			Payload:        msg.Value,
		}
		err := guard.Consume(ctx, guarded, InitializeItemsHandlerName, func(ctx context.Context, _ idempotency.Message) error {
			return initializer.InitializeItems(ctx, req)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, idempotency.ErrMissingIdempotencyKey) {
			log.Error("InitializeItemsRequest has no idempotency key, dropping message", zap.Error(err))
			return nil
		}
		if errors.Is(err, domain.ErrContractViolation) {
			log.Error("Provider contract violated while initializing items",
				zap.String("bulk_operation_id", req.BulkOperationResponse.ID),
				zap.Bool("alert", true),
				zap.Error(err))
			return err
		}
		log.Error("Failed to initialize items",
			zap.String("bulk_operation_id", req.BulkOperationResponse.ID),
			zap.Error(err))
		return err
	}
}
