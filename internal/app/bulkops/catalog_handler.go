package bulkops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bulkops/internal/dispatch"
	"bulkops/internal/domain"
)

type CatalogGateway interface {
	CreateBulkOperation(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error)
	GetSupportedBulkOperations(ctx context.Context, operationType, entityType string) ([]domain.SupportedBulkOperation, error)
}

type IDGenerator interface {
	NextULID() string
}

// CatalogOperationHandler runs operations the catalog service supports: each
// one gets its own sandbox, and its items are initialized asynchronously
// unless the client supplied them.
type CatalogOperationHandler struct {
	catalog  CatalogGateway
	sender   dispatch.Sender
	ids      IDGenerator
	colorHex func() string
	logger   *zap.Logger
}

func NewCatalogOperationHandler(catalog CatalogGateway, sender dispatch.Sender, ids IDGenerator, logger *zap.Logger) *CatalogOperationHandler {
	return &CatalogOperationHandler{
		catalog:  catalog,
		sender:   sender,
		ids:      ids,
		colorHex: RandomColorHex,
		logger:   logger,
	}
}

var _ OperationHandler = (*CatalogOperationHandler)(nil)

func (h *CatalogOperationHandler) CanHandle(ctx context.Context, operationType, entityType string) (bool, error) {
	supported, err := h.catalog.GetSupportedBulkOperations(ctx, operationType, entityType)
	if err != nil {
		return false, err
	}
	for _, op := range supported {
		if strings.EqualFold(op.OperationType, operationType) {
			return true, nil
		}
	}
	return false, nil
}

func (h *CatalogOperationHandler) Handle(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error) {
	log := h.logger.With(zap.String("operation_type", req.OperationType), zap.String("tenant_id", ctxInfo.TenantID))

	sandboxReq := newCreateSandboxRequest(h.ids.NextULID(), req.Name, h.colorHex(), ctxInfo)
	if err := h.sender.Send(ctx, sandboxReq, domain.MessageTypeCreateSandbox, SandboxIdempotencyKey(sandboxReq), domain.BulkOpsRouteKey); err != nil {
		return nil, fmt.Errorf("failed to request sandbox %s: %w", sandboxReq.SandboxID, err)
	}
	logStage(log, stageSandboxRequested, zap.String("sandbox_id", sandboxReq.SandboxID))

	opReq := req.Clone()
	opReq.SandboxID = sandboxReq.SandboxID
	if ctxInfo.Author != "" {
		opReq.Author = ctxInfo.Author
	}

	resp, err := h.catalog.CreateBulkOperation(ctx, opReq, ctxInfo)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("bulk_operation_id", resp.ID))
	logStage(log, stageOperationCreated)

	if len(opReq.Inclusions) > 0 {
		logStage(log, stageItemsPresupplied, zap.Int("inclusions", len(opReq.Inclusions)))
		return resp, nil
	}

	initReq := domain.InitializeItemsRequest{
		BulkOperationRequest:  opReq,
		BulkOperationResponse: *resp,
		ContextInfo:           ctxInfo,
	}
	if err := h.sender.Send(ctx, initReq, domain.MessageTypeInitializeItems, resp.ID, domain.BulkOpsRouteKey); err != nil {
		return nil, fmt.Errorf("failed to request item initialization for bulk operation %s: %w", resp.ID, err)
	}
	logStage(log, stageItemsInitializing)
	return resp, nil
}
