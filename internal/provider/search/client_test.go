package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bulkops/internal/domain"
	"bulkops/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("/search/products", provider.NewClient(srv.URL, srv.Client(), 0, zap.NewNop()))
}

func TestParams(t *testing.T) {
	req := domain.BulkOperationRequest{
		Query: "shoes",
		Filters: []domain.SearchFilter{
			{Name: "brand", Values: []string{"acme", "globex"}},
			{Name: "price", Ranges: []domain.SearchFilterRange{{MinValue: "10", MaxValue: "20"}, {MinValue: "50"}}},
		},
	}

	want := url.Values{
		"filters[0].name":               {"brand"},
		"filters[0].values":             {"acme", "globex"},
		"filters[1].name":               {"price"},
		"filters[1].ranges[0].minValue": {"10"},
		"filters[1].ranges[0].maxValue": {"20"},
		"filters[1].ranges[1].minValue": {"50"},
		"filters[1].ranges[1].maxValue": {""},
		"query":                         {"shoes"},
	}
	assert.Equal(t, want, Params(req))
}

func TestParams_BlankQueryOmitted(t *testing.T) {
	params := Params(domain.BulkOperationRequest{Query: "   "})
	_, ok := params["query"]
	assert.False(t, ok)
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "25", q.Get("size"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "PRODUCT", q.Get("type"))
		assert.Equal(t, "brand", q.Get("filters[0].name"))
		assert.Equal(t, "app-1", r.Header.Get(domain.HeaderApplicationID))
		w.Write([]byte(`{"content":[{"id":"p1"},{"id":"p2","sku":"S2"}],"numberOfElements":2}`))
	})

	req := domain.BulkOperationRequest{Filters: []domain.SearchFilter{{Name: "brand", Values: []string{"acme"}}}}
	resp, err := c.Search(context.Background(), req, domain.BulkOperationResponse{ID: "op-1"},
		domain.Page{Number: 3, Size: 25}, domain.ContextInfo{ApplicationID: "app-1"})

	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "S2", resp.Content[1].SKU)
	assert.Equal(t, json.Number("2"), resp.Attributes["numberOfElements"])
}

func TestClient_Search_NullBody(t *testing.T) {
	for _, body := range []string{"", "null"} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		_, err := c.Search(context.Background(), domain.BulkOperationRequest{}, domain.BulkOperationResponse{ID: "op-1"},
			domain.Page{Size: 50}, domain.ContextInfo{})

		var violation *domain.ContractViolationError
		assert.ErrorAs(t, err, &violation)
	}
}

func TestClient_Search_ProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), domain.BulkOperationRequest{}, domain.BulkOperationResponse{ID: "op-1"},
		domain.Page{Size: 50}, domain.ContextInfo{})
	assert.ErrorIs(t, err, domain.ErrProviderAPI)
}
