package bulkops

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"bulkops/internal/domain"
)

// OperationHandler executes bulk operations of the kinds it supports.
type OperationHandler interface {
	CanHandle(ctx context.Context, operationType, entityType string) (bool, error)
	Handle(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error)
}

type BulkOperationService interface {
	ValidateBulkOperationRequest(req domain.BulkOperationRequest) error
	CreateBulkOperation(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error)
}

// stage names the progress of a create request in the logs.
type stage string

const (
	stageReceived          stage = "RECEIVED"
	stageValidated         stage = "VALIDATED"
	stageHandlerSelected   stage = "HANDLER_SELECTED"
	stageSandboxRequested  stage = "SANDBOX_REQUESTED"
	stageOperationCreated  stage = "OPERATION_CREATED"
	stageItemsInitializing stage = "ITEMS_INITIALIZING"
	stageItemsPresupplied  stage = "ITEMS_PRESUPPLIED"
	stageReturned          stage = "RETURNED"
)

func logStage(logger *zap.Logger, s stage, fields ...zap.Field) {
	logger.Info("Bulk operation "+strings.ToLower(strings.ReplaceAll(string(s), "_", " ")), append(fields, zap.String("stage", string(s)))...)
}

type bulkOperationService struct {
	handlers []OperationHandler
	validate *validator.Validate
	logger   *zap.Logger
}

// NewBulkOperationService consults handlers in the given order.
func NewBulkOperationService(handlers []OperationHandler, logger *zap.Logger) BulkOperationService {
	return &bulkOperationService{
		handlers: handlers,
		validate: newValidator(),
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func (s *bulkOperationService) ValidateBulkOperationRequest(req domain.BulkOperationRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("failed to validate bulk operation request: %w", err)
	}

	out := &domain.ValidationError{}
	for _, fe := range validationErrors {
		out.Errors = append(out.Errors, toFieldError(fe))
	}
	return out
}

func toFieldError(fe validator.FieldError) domain.FieldError {
	field := fe.Namespace()
	if _, rest, found := strings.Cut(field, "."); found {
		field = rest
	}
	if field == "operationType" {
		return domain.FieldError{
			Field:   field,
			Code:    domain.CodeMissingOperationType,
			Message: "Operation type is required",
		}
	}
	return domain.FieldError{
		Field:   field,
		Code:    fe.Tag(),
		Message: fmt.Sprintf("%s failed the %s check", field, fe.Tag()),
	}
}

func (s *bulkOperationService) CreateBulkOperation(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error) {
	log := s.logger.With(
		zap.String("operation_type", req.OperationType),
		zap.String("entity_type", req.EntityType),
		zap.String("tenant_id", ctxInfo.TenantID),
	)
	logStage(log, stageReceived)

	if err := s.ValidateBulkOperationRequest(req); err != nil {
		return nil, err
	}
	logStage(log, stageValidated)

	for _, handler := range s.handlers {
		ok, err := handler.CanHandle(ctx, req.OperationType, req.EntityType)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve handler for operation type %s: %w", req.OperationType, err)
		}
		if !ok {
			continue
		}
		logStage(log, stageHandlerSelected, zap.String("handler", fmt.Sprintf("%T", handler)))

		resp, err := handler.Handle(ctx, req.Clone(), ctxInfo)
		if err != nil {
			return nil, err
		}
		logStage(log, stageReturned, zap.String("bulk_operation_id", resp.ID))
		return resp, nil
	}

	log.Warn("No bulk operation handler found")
	return nil, &domain.HandlerNotFoundError{OperationType: req.OperationType, EntityType: req.EntityType}
}
