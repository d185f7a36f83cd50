package search

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

// entityType is the only index type bulk operations page over.
const entityType = "PRODUCT"

// Client pages through the search index.
type Client struct {
	searchURI string
	http      *provider.Client
}

func NewClient(searchURI string, httpClient *provider.Client) *Client {
	return &Client{searchURI: searchURI, http: httpClient}
}

// Search returns one page of results for the request's query and filters. A
// successful answer without a body is a contract violation.
func (c *Client) Search(
	ctx context.Context,
	req domain.BulkOperationRequest,
	resp domain.BulkOperationResponse,
	page domain.Page,
	ctxInfo domain.ContextInfo,
) (*domain.SearchResponse, error) {
	query := Params(req)
	query.Set("size", strconv.Itoa(page.Size))
	query.Set("page", strconv.Itoa(page.Number))
	query.Set("type", entityType)

	body, err := c.http.Do(ctx, http.MethodGet, c.searchURI, query, nil, ctxInfo)
	if err != nil {
		return nil, err
	}
	if provider.IsAbsent(body) {
		return nil, &domain.ContractViolationError{
			Reason: fmt.Sprintf("search returned no body for bulk operation %s page %d", resp.ID, page.Number),
		}
	}

	var out domain.SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &out, nil
}

// Params encodes the request's filters and free-text query.
func Params(req domain.BulkOperationRequest) url.Values {
	params := url.Values{}
	for i, filter := range req.Filters {
		prefix := fmt.Sprintf("filters[%d]", i)
		params.Set(prefix+".name", filter.Name)
		for _, v := range filter.Values {
			params.Add(prefix+".values", v)
		}
		for j, r := range filter.Ranges {
			rangePrefix := fmt.Sprintf("%s.ranges[%d]", prefix, j)
			params.Set(rangePrefix+".minValue", r.MinValue)
			params.Set(rangePrefix+".maxValue", r.MaxValue)
		}
	}
	if strings.TrimSpace(req.Query) != "" {
		params.Set("query", req.Query)
	}
	return params
}
