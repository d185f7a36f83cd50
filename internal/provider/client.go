package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bulkops/internal/domain"
)

const maxErrorBody = 64 << 10

// Client performs JSON calls against one external service. It never retries;
// redelivery of the triggering message is the retry mechanism.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a client limited to requestsPerSecond calls (0 means
// unlimited).
func NewClient(baseURL string, httpClient *http.Client, requestsPerSecond float64, logger *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// Do sends the request and returns the raw response body of a 2xx answer.
// Any other status yields *domain.ProviderAPIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, ctxInfo domain.ContextInfo) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body for %s %s: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	SetContextHeaders(req.Header, ctxInfo)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("Provider call failed",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &domain.ProviderAPIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, endpoint, err)
	}
	return respBody, nil
}

// SetContextHeaders forwards the request-scoped tenancy context.
func SetContextHeaders(h http.Header, ctxInfo domain.ContextInfo) {
	if ctxInfo.TenantID != "" {
		h.Set(domain.HeaderTenantID, ctxInfo.TenantID)
	}
	if ctxInfo.ApplicationID != "" {
		h.Set(domain.HeaderApplicationID, ctxInfo.ApplicationID)
	}
	if ctxInfo.Author != "" {
		h.Set(domain.HeaderAuthor, ctxInfo.Author)
	}
	if ctxInfo.Locale != "" {
		h.Set(domain.HeaderAcceptLanguage, ctxInfo.Locale)
	}
}

// IsAbsent reports whether a response body carries no JSON value.
func IsAbsent(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
