package bulkops_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"bulkops/internal/app/bulkops"
	"bulkops/internal/domain"
)

type BulkOperationHandler struct {
	service bulkops.BulkOperationService
	logger  *zap.Logger
}

func NewBulkOperationHandler(s bulkops.BulkOperationService, l *zap.Logger) *BulkOperationHandler {
	return &BulkOperationHandler{service: s, logger: l}
}

// APIError is the error body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (h *BulkOperationHandler) CreateBulkOperationHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateBulkOperation", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, APIError{Code: domain.CodeValidation, Message: "Invalid request body"})
		return
	}

	resp, err := h.service.CreateBulkOperation(r.Context(), req, ContextInfoFromRequest(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *BulkOperationHandler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.HandlerNotFoundError
	var providerErr *domain.ProviderAPIError

	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, APIError{
			Code:    domain.CodeValidation,
			Message: "The bulk operation request is invalid",
			Details: validationErr.Errors,
		})
	case errors.As(err, &notFoundErr):
		h.logger.Warn("No handler for bulk operation", zap.String("operation_type", notFoundErr.OperationType),
			zap.String("entity_type", notFoundErr.EntityType))
		h.writeError(w, http.StatusBadRequest, APIError{Code: domain.CodeHandlerNotFound, Message: notFoundErr.Error()})
	case errors.As(err, &providerErr):
		h.logger.Error("Upstream provider failed during bulk operation creation", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, APIError{
			Code:    domain.CodeProviderAPI,
			Message: "An upstream service call failed",
			Details: map[string]any{"status": providerErr.StatusCode},
		})
	default:
		h.logger.Error("Failed to create bulk operation", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, APIError{Code: domain.CodeInternal, Message: "Internal server error"})
	}
}

func (h *BulkOperationHandler) writeError(w http.ResponseWriter, status int, apiErr APIError) {
	h.writeJSON(w, status, apiErr)
}

func (h *BulkOperationHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// ContextInfoFromRequest reads the tenancy context from request headers.
func ContextInfoFromRequest(r *http.Request) domain.ContextInfo {
	return domain.ContextInfo{
		TenantID:      r.Header.Get(domain.HeaderTenantID),
		ApplicationID: r.Header.Get(domain.HeaderApplicationID),
		Author:        r.Header.Get(domain.HeaderAuthor),
		Locale:        r.Header.Get(domain.HeaderAcceptLanguage),
	}
}
