// Package errors provides standardized error handling for BPMN workflow integration
// and for the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCustomerNotFound  ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrCodeEvaluationFailed  ErrorCode = "EVALUATION_FAILED"
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeCatalogValidation ErrorCode = "CATALOG_VALIDATION_FAILED"
	ErrCodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrCodeEmbeddingTimeout ErrorCode = "EMBEDDING_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeIndexingFailed    ErrorCode = "INDEXING_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// As returns the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewCustomerNotFoundError is returned when no customer exists for a document.
func NewCustomerNotFoundError(identityDocument string) *StandardError {
	return newError(ErrCodeCustomerNotFound,
		fmt.Sprintf("Customer not found with identity document: %s", identityDocument),
		fmt.Sprintf("identityDocument: %s", identityDocument), false, nil).
		WithMetadata("identityDocument", identityDocument)
}

// NewEvaluationFailedError wraps an unrecoverable pipeline error.
func NewEvaluationFailedError(err error) *StandardError {
	return newError(ErrCodeEvaluationFailed, "Credit evaluation failed", err.Error(), true, err)
}

// NewInvalidRequestError creates a non-retryable payload validation error.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Request validation failed", details, false, nil)
}

// NewCatalogValidationError creates a non-retryable catalog entry validation error.
func NewCatalogValidationError(entryID, details string) *StandardError {
	return newError(ErrCodeCatalogValidation, "Catalog entry validation failed",
		fmt.Sprintf("id: %s, %s", entryID, details), false, nil)
}

// NewProductNotFoundError is returned when no active product has the id.
func NewProductNotFoundError(productID string) *StandardError {
	return newError(ErrCodeProductNotFound,
		fmt.Sprintf("Product not found with id: %s", productID),
		fmt.Sprintf("productId: %s", productID), false, nil).
		WithMetadata("productId", productID)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("queryType: %s", queryType), true, nil)
}

// NewEmbeddingFailedError creates a retryable embedding provider error.
func NewEmbeddingFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding provider error",
		fmt.Sprintf("provider: %s, error: %s", provider, err.Error()), true, err)
}

// NewEmbeddingTimeoutError creates a retryable embedding timeout error.
func NewEmbeddingTimeoutError(provider string) *StandardError {
	return newError(ErrCodeEmbeddingTimeout, "Embedding provider timeout",
		fmt.Sprintf("provider: %s", provider), true, nil)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Vector search query error",
		fmt.Sprintf("indexName: %s, error: %s", indexName, err.Error()), true, err)
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(indexName string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Vector search query timeout",
		fmt.Sprintf("indexName: %s", indexName), true, nil)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Vector index not found",
		fmt.Sprintf("indexName: %s", indexName), false, nil)
}

// NewIndexingFailedError creates a retryable document indexing error.
func NewIndexingFailedError(indexName, documentID string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Document indexing failed",
		fmt.Sprintf("indexName: %s, id: %s, error: %s", indexName, documentID, err.Error()), true, err)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeEvaluationFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexingFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeEmbeddingTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeCatalogValidation:
		return http.StatusBadRequest
	case ErrCodeCustomerNotFound, ErrCodeProductNotFound, ErrCodeIndexNotFound:
		return http.StatusNotFound
	case ErrCodeQueryTimeout, ErrCodeSearchTimeout, ErrCodeEmbeddingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CUSTOMER") || strings.Contains(codeStr, "EVALUATION"):
		return "EVALUATION"
	case strings.Contains(codeStr, "PRODUCT"):
		return "CATALOG"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "EMBEDDING"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
