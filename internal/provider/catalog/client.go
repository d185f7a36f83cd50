package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bulkops/internal/domain"
	"bulkops/internal/provider"
)

type Config struct {
	BulkOperationURI            string
	BulkOperationItemsURI       string
	SupportedBulkOpsURI         string
	BulkOperationTotalRecordURI string
}

// Client talks to the catalog service that owns bulk operations and their items.
type Client struct {
	cfg  Config
	http *provider.Client
}

func NewClient(cfg Config, httpClient *provider.Client) *Client {
	return &Client{cfg: cfg, http: httpClient}
}

func (c *Client) CreateBulkOperation(ctx context.Context, req domain.BulkOperationRequest, ctxInfo domain.ContextInfo) (*domain.BulkOperationResponse, error) {
	body, err := c.http.Do(ctx, http.MethodPost, c.cfg.BulkOperationURI, nil, req, ctxInfo)
	if err != nil {
		return nil, err
	}
	var resp domain.BulkOperationResponse
	if err := decode(body, &resp); err != nil {
		return nil, fmt.Errorf("create bulk operation: %w", err)
	}
	return &resp, nil
}

// GetSupportedBulkOperations lists what the catalog can execute. The entity
// type filter is only sent when set.
func (c *Client) GetSupportedBulkOperations(ctx context.Context, operationType, entityType string) ([]domain.SupportedBulkOperation, error) {
	query := url.Values{"operationType": {operationType}}
	if strings.TrimSpace(entityType) != "" {
		query.Set("entityType", entityType)
	}

	body, err := c.http.Do(ctx, http.MethodGet, c.cfg.SupportedBulkOpsURI, query, nil, domain.ContextInfo{})
	if err != nil {
		return nil, err
	}
	if provider.IsAbsent(body) {
		return nil, nil
	}
	var ops []domain.SupportedBulkOperation
	if err := json.Unmarshal(body, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode supported bulk operations: %w", err)
	}
	return ops, nil
}

type initializeItemsBody struct {
	EntityContextIDs []string `json:"entityContextIds"`
}

// InitializeItems registers one page of search results as items of the
// operation. Excluded identifiers are dropped; page order is preserved.
func (c *Client) InitializeItems(
	ctx context.Context,
	page domain.SearchResponse,
	req domain.BulkOperationRequest,
	resp domain.BulkOperationResponse,
	pageInfo domain.Page,
	ctxInfo domain.ContextInfo,
) (*domain.InitializeItemResponse, error) {
	query := url.Values{
		"page": {strconv.Itoa(pageInfo.Number)},
		"size": {strconv.Itoa(pageInfo.Size)},
	}
	payload := initializeItemsBody{EntityContextIDs: EntityContextIDs(page.Items(), req.Exclusions)}

	body, err := c.http.Do(ctx, http.MethodPost, c.operationPath(resp.ID, c.cfg.BulkOperationItemsURI), query, payload, ctxInfo)
	if err != nil {
		return nil, err
	}
	var out domain.InitializeItemResponse
	if err := decode(body, &out); err != nil {
		return nil, fmt.Errorf("initialize items of bulk operation %s: %w", resp.ID, err)
	}
	return &out, nil
}

func (c *Client) UpdateBulkOperationTotalRecordCount(
	ctx context.Context,
	total int64,
	resp domain.BulkOperationResponse,
	ctxInfo domain.ContextInfo,
) (*domain.BulkOperationResponse, error) {
	payload := map[string]int64{"totalRecordCount": total}

	body, err := c.http.Do(ctx, http.MethodPatch, c.operationPath(resp.ID, c.cfg.BulkOperationTotalRecordURI), nil, payload, ctxInfo)
	if err != nil {
		return nil, err
	}
	var out domain.BulkOperationResponse
	if err := decode(body, &out); err != nil {
		return nil, fmt.Errorf("update total record count of bulk operation %s: %w", resp.ID, err)
	}
	return &out, nil
}

func (c *Client) operationPath(id, suffix string) string {
	return c.cfg.BulkOperationURI + "/" + url.PathEscape(id) + suffix
}

// EntityContextIDs returns the identifiers of items that are not excluded.
func EntityContextIDs(items []domain.CatalogItem, exclusions []string) []string {
	excluded := make(map[string]struct{}, len(exclusions))
	for _, id := range exclusions {
		excluded[id] = struct{}{}
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, skip := excluded[item.GetID()]; skip {
			continue
		}
		ids = append(ids, item.GetID())
	}
	return ids
}

func decode(body []byte, out any) error {
	if provider.IsAbsent(body) {
		return &domain.ContractViolationError{Reason: "empty response body"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
