package initializer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bulkops/internal/dispatch"
	"bulkops/internal/domain"
)

const DefaultBatchSize = 50

var ErrInvalidBatchSize = errors.New("initialize items batch size must be positive")

type CatalogGateway interface {
	InitializeItems(ctx context.Context, page domain.SearchResponse, req domain.BulkOperationRequest, resp domain.BulkOperationResponse, pageInfo domain.Page, ctxInfo domain.ContextInfo) (*domain.InitializeItemResponse, error)
	UpdateBulkOperationTotalRecordCount(ctx context.Context, total int64, resp domain.BulkOperationResponse, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error)
}

type SearchGateway interface {
	Search(ctx context.Context, req domain.BulkOperationRequest, resp domain.BulkOperationResponse, page domain.Page, ctxInfo domain.ContextInfo) (*domain.SearchResponse, error)
}

// Pipeline computes the item set of a bulk operation by paging the search
// index, registers each page with the catalog, records the total and hands
// the operation to the processing stage.
type Pipeline struct {
	catalog   CatalogGateway
	search    SearchGateway
	sender    dispatch.Sender
	batchSize int
	logger    *zap.Logger
}

func NewPipeline(catalog CatalogGateway, search SearchGateway, sender dispatch.Sender, batchSize int, logger *zap.Logger) (*Pipeline, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	return &Pipeline{
		catalog:   catalog,
		search:    search,
		sender:    sender,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// InitializeItems runs the whole loop for one request. Pages are processed
// one at a time; the total and the process request are emitted only after
// the last page. Any error aborts the run unchanged so that redelivery
// starts over from the first page.
func (p *Pipeline) InitializeItems(ctx context.Context, msg domain.InitializeItemsRequest) error {
	req := msg.BulkOperationRequest
	resp := msg.BulkOperationResponse
	ctxInfo := msg.ContextInfo

	log := p.logger.With(zap.String("bulk_operation_id", resp.ID), zap.String("operation_type", req.OperationType))

	if resp.Substatus == domain.SubstatusUnspecified {
		log.Warn("Bulk operation substatus missing or unrecognized, initializing items")
	}
	if resp.Substatus.IsTerminal() {
		log.Info("Bulk operation already finished, skipping item initialization",
			zap.Stringer("substatus", resp.Substatus))
		return nil
	}

	var total int64
	pageNumber := 0
	for {
		page := domain.Page{Number: pageNumber, Size: p.batchSize}

		results, err := p.search.Search(ctx, req, resp, page, ctxInfo)
		if err != nil {
			return err
		}

		if len(results.Content) > 0 {
			initialized, err := p.catalog.InitializeItems(ctx, *results, req, resp, page, ctxInfo)
			if err != nil {
				return err
			}
			total += int64(len(initialized.ItemResponses))
		}

		log.Debug("Initialized page of items",
			zap.Int("page", pageNumber),
			zap.Int("results", len(results.Content)),
			zap.Int64("total", total))

		pageNumber++
		if len(results.Content) < p.batchSize {
			break
		}
	}

	if _, err := p.catalog.UpdateBulkOperationTotalRecordCount(ctx, total, resp, ctxInfo); err != nil {
		return err
	}

	processReq := domain.ProcessRequest{BulkOperationID: resp.ID, OperationType: req.OperationType}
	if err := p.sender.Send(ctx, processReq, domain.MessageTypeProcess, resp.ID, domain.BulkOpsRouteKey); err != nil {
		return err
	}

	log.Info("Bulk operation items initialized", zap.Int64("total", total), zap.Int("pages", pageNumber))
	return nil
}
