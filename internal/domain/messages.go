package domain

import "fmt"

type MessageType string

const (
	MessageTypeCreateSandbox   MessageType = "CREATE_SANDBOX_REQUEST"
	MessageTypeInitializeItems MessageType = "BULK_OPS_INITIALIZE_ITEMS_REQUEST"
	MessageTypeProcess         MessageType = "BULK_OPS_PROCESS_REQUEST"
)

// BulkOpsRouteKey tags messages produced by this service for downstream routing.
const BulkOpsRouteKey = "bulkOpsSource"

// Kafka headers attached to every dispatched message.
const (
	HeaderIdempotencyKey = "idempotency-key"
	HeaderMessageType    = "message-type"
	HeaderRouteKey       = "route-key"
)

// CreateSandboxRequest asks the sandbox service for an isolated workspace.
type CreateSandboxRequest struct {
	Description   string `json:"description"`
	ColorHex      string `json:"colorHex"`
	SandboxID     string `json:"sandboxId"`
	Name          string `json:"name"`
	ApplicationID string `json:"applicationId,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
}

// String renders the canonical form the idempotency key is derived from.
// Field order and layout are part of the key contract.
func (r CreateSandboxRequest) String() string {
	return fmt.Sprintf("CreateSandboxRequest(description=%s, colorHex=%s, sandboxId=%s, name=%s, applicationId=%s, tenantId=%s)",
		r.Description, r.ColorHex, r.SandboxID, r.Name, nullable(r.ApplicationID), nullable(r.TenantID))
}

func nullable(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

// InitializeItemsRequest triggers the item initialization pipeline for one operation.
type InitializeItemsRequest struct {
	BulkOperationRequest  BulkOperationRequest  `json:"bulkOperationRequest"`
	BulkOperationResponse BulkOperationResponse `json:"bulkOperationResponse"`
	ContextInfo           ContextInfo           `json:"contextInfo"`
}

// ProcessRequest hands a fully initialized operation to the processing stage.
type ProcessRequest struct {
	BulkOperationID string `json:"bulkOperationId"`
	OperationType   string `json:"operationType"`
}
