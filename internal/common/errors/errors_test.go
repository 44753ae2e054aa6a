package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Constructors & chain helpers
// ==========================

func TestStandardError_Chain(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("profile: %w", NewQueryExecutionFailedError("customer_employment", cause))

	stdErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "queryType: customer_employment")
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsCode(err, ErrCodeQueryExecutionFailed))
	assert.False(t, IsCode(err, ErrCodeQueryTimeout))

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestNewCustomerNotFoundError(t *testing.T) {
	err := NewCustomerNotFoundError("12345678")

	assert.Equal(t, "Customer not found with identity document: 12345678", err.Message)
	assert.False(t, err.Retryable)
	assert.Equal(t, "12345678", err.Metadata["identityDocument"])
	assert.Equal(t, "StandardError[CUSTOMER_NOT_FOUND]: Customer not found with identity document: 12345678", err.Error())
}

func TestNewProductNotFoundError(t *testing.T) {
	err := NewProductNotFoundError("CONS-01")

	assert.Equal(t, ErrCodeProductNotFound, err.Code)
	assert.Equal(t, "Product not found with id: CONS-01", err.Message)
	assert.False(t, err.Retryable)
	assert.Equal(t, "CONS-01", err.Metadata["productId"])
}

func TestNormalize(t *testing.T) {
	known := NewSearchTimeoutError("ranks")
	assert.Same(t, known, Normalize(fmt.Errorf("wrapped: %w", known)))

	unknown := Normalize(stderrors.New("nil pointer"))
	assert.Equal(t, ErrCodeInternal, unknown.Code)
	assert.Equal(t, "nil pointer", unknown.Details)
	assert.False(t, unknown.Retryable)
}

// ==========================
// Conversion tables
// ==========================

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeDatabaseConnectionFailed, 3},
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodeEvaluationFailed, 3},
		{ErrCodeEmbeddingFailed, 3},
		{ErrCodeIndexingFailed, 3},
		{ErrCodeQueryTimeout, 2},
		{ErrCodeSearchTimeout, 2},
		{ErrCodeEmbeddingTimeout, 2},
		{ErrCodeCustomerNotFound, 0},
		{ErrCodeProductNotFound, 0},
		{ErrCodeInvalidRequest, 0},
		{ErrCodeIndexNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable keeps budget", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewEmbeddingFailedError("openai", stderrors.New("503")))

		assert.Equal(t, "EMBEDDING_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, "EMBEDDING_FAILED", bpmn.ErrorVariables["originalErrorCode"])
	})

	t.Run("non retryable has no retries", func(t *testing.T) {
		err := NewCustomerNotFoundError("87654321")
		bpmn := ConvertToBPMNError(err)

		assert.Equal(t, 0, bpmn.Retries)
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "CUSTOMER_NOT_FOUND", vars["errorCode"])
		assert.Equal(t, err.Message, vars["errorMessage"])
		assert.Equal(t, "87654321", vars["identityDocument"])
		assert.Equal(t, false, vars["retryable"])
	})

	t.Run("internal error marked non retryable", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInternalError(stderrors.New("boom")))
		assert.Equal(t, 0, bpmn.Retries)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeCatalogValidation, http.StatusBadRequest},
		{ErrCodeCustomerNotFound, http.StatusNotFound},
		{ErrCodeProductNotFound, http.StatusNotFound},
		{ErrCodeIndexNotFound, http.StatusNotFound},
		{ErrCodeEmbeddingTimeout, http.StatusGatewayTimeout},
		{ErrCodeEvaluationFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "EVALUATION", GetErrorCategory(ErrCodeCustomerNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexingFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeEmbeddingFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeCatalogValidation))
	assert.Equal(t, "CATALOG", GetErrorCategory(ErrCodeProductNotFound))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
