package domain

// BulkOperationRequest is the client description of a bulk operation.
// Handlers never mutate a request they receive; they work on a Clone.
type BulkOperationRequest struct {
	OperationType string         `json:"operationType" validate:"notblank"`
	EntityType    string         `json:"entityType,omitempty"`
	Query         string         `json:"query,omitempty"`
	Filters       []SearchFilter `json:"filters,omitempty"`
	Inclusions    []string       `json:"inclusions,omitempty"`
	Exclusions    []string       `json:"exclusions,omitempty"`
	Name          string         `json:"name,omitempty"`
	SandboxID     string         `json:"sandboxId,omitempty"`
	Author        string         `json:"author,omitempty"`
	Attributes    map[string]any `json:"-"`
}

func (r BulkOperationRequest) MarshalJSON() ([]byte, error) {
	type request BulkOperationRequest
	return marshalWithAttributes(request(r), r.Attributes)
}

func (r *BulkOperationRequest) UnmarshalJSON(data []byte) error {
	type request BulkOperationRequest
	var aux request
	attrs, err := unmarshalWithAttributes(data, &aux)
	if err != nil {
		return err
	}
	*r = BulkOperationRequest(aux)
	r.Attributes = attrs
	return nil
}

func (r BulkOperationRequest) Clone() BulkOperationRequest {
	out := r
	if r.Filters != nil {
		out.Filters = make([]SearchFilter, len(r.Filters))
		for i, f := range r.Filters {
			out.Filters[i] = f.clone()
		}
	}
	out.Inclusions = cloneStrings(r.Inclusions)
	out.Exclusions = cloneStrings(r.Exclusions)
	out.Attributes = cloneAttributes(r.Attributes)
	return out
}

type SearchFilter struct {
	Name   string              `json:"name"`
	Values []string            `json:"values,omitempty"`
	Ranges []SearchFilterRange `json:"ranges,omitempty"`
}

func (f SearchFilter) clone() SearchFilter {
	out := f
	out.Values = cloneStrings(f.Values)
	if f.Ranges != nil {
		out.Ranges = append([]SearchFilterRange(nil), f.Ranges...)
	}
	return out
}

type SearchFilterRange struct {
	MinValue string `json:"minValue,omitempty"`
	MaxValue string `json:"maxValue,omitempty"`
}

// BulkOperationResponse is the catalog's view of a created bulk operation.
type BulkOperationResponse struct {
	ID               string         `json:"id"`
	OperationType    string         `json:"operationType,omitempty"`
	EntityType       string         `json:"entityType,omitempty"`
	Name             string         `json:"name,omitempty"`
	SandboxID        string         `json:"sandboxId,omitempty"`
	Author           string         `json:"author,omitempty"`
	Substatus        Substatus      `json:"substatus,omitempty"`
	TotalRecordCount int64          `json:"totalRecordCount,omitempty"`
	Attributes       map[string]any `json:"-"`
}

func (r BulkOperationResponse) MarshalJSON() ([]byte, error) {
	type response BulkOperationResponse
	return marshalWithAttributes(response(r), r.Attributes)
}

func (r *BulkOperationResponse) UnmarshalJSON(data []byte) error {
	type response BulkOperationResponse
	var aux response
	attrs, err := unmarshalWithAttributes(data, &aux)
	if err != nil {
		return err
	}
	*r = BulkOperationResponse(aux)
	r.Attributes = attrs
	return nil
}

type SupportedBulkOperation struct {
	OperationType string `json:"operationType"`
	EntityType    string `json:"entityType,omitempty"`
}

type InitializeItemResponse struct {
	ItemResponses []ItemResponse `json:"itemResponses"`
}

type ItemResponse struct {
	ID              string `json:"id,omitempty"`
	EntityContextID string `json:"entityContextId"`
}

// Page is a zero-based page request.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
