package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("bulk operation request is invalid")
	ErrHandlerNotFound   = errors.New("bulk operation handler not found")
	ErrProviderAPI       = errors.New("provider api call failed")
	ErrContractViolation = errors.New("provider contract violated")
)

const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeHandlerNotFound      = "BULK_OPS_HANDLER_NOT_FOUND"
	CodeProviderAPI          = "PROVIDER_API_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
	CodeMissingOperationType = "missingOperationType"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type HandlerNotFoundError struct {
	OperationType string
	EntityType    string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("No handler was found for operation type %s and entity type %s", e.OperationType, e.EntityType)
}

func (e *HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }

// ProviderAPIError is a non-2xx answer from the catalog or search service.
type ProviderAPIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *ProviderAPIError) Is(target error) bool { return target == ErrProviderAPI }

// ContractViolationError means a provider answered successfully but with a
// payload that breaks its documented contract.
type ContractViolationError struct {
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrContractViolation.Error(), e.Reason)
}

func (e *ContractViolationError) Is(target error) bool { return target == ErrContractViolation }
