package domain

// CatalogItem is anything the search index can return for a bulk operation.
type CatalogItem interface {
	GetID() string
	GetAttributes() map[string]any
}

type Product struct {
	ID         string         `json:"id"`
	SKU        string         `json:"sku,omitempty"`
	PricingKey string         `json:"pricingKey,omitempty"`
	Attributes map[string]any `json:"-"`
}

var _ CatalogItem = Product{}

func (p Product) GetID() string { return p.ID }

func (p Product) GetAttributes() map[string]any { return p.Attributes }

func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return marshalWithAttributes(product(p), p.Attributes)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type product Product
	var aux product
	attrs, err := unmarshalWithAttributes(data, &aux)
	if err != nil {
		return err
	}
	*p = Product(aux)
	p.Attributes = attrs
	return nil
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Content    []Product      `json:"content"`
	Attributes map[string]any `json:"-"`
}

func (r SearchResponse) MarshalJSON() ([]byte, error) {
	type response SearchResponse
	return marshalWithAttributes(response(r), r.Attributes)
}

func (r *SearchResponse) UnmarshalJSON(data []byte) error {
	type response SearchResponse
	var aux response
	attrs, err := unmarshalWithAttributes(data, &aux)
	if err != nil {
		return err
	}
	*r = SearchResponse(aux)
	r.Attributes = attrs
	return nil
}

// Items returns the page content as catalog items, preserving order.
func (r SearchResponse) Items() []CatalogItem {
	items := make([]CatalogItem, len(r.Content))
	for i, p := range r.Content {
		items[i] = p
	}
	return items
}
