// internal/api/response.go
package api

import (
	"encoding/json"
	"net/http"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/validation"
)

const genericErrorMessage = "An unexpected error occurred while processing the request"

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err with the status of its code. Server-side failures
// get a generic message so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	resp := ErrorResponse{Error: string(stdErr.Code), Message: stdErr.Message}
	switch {
	case status >= http.StatusInternalServerError:
		resp.Message = genericErrorMessage
	case stdErr.Details != "" && !isNotFound(stdErr.Code):
		resp.Details = []FieldError{{Message: stdErr.Details}}
	}
	writeJSON(w, status, resp)
}

// Not-found messages already name the missing resource.
func isNotFound(code apperrors.ErrorCode) bool {
	return code == apperrors.ErrCodeCustomerNotFound || code == apperrors.ErrCodeProductNotFound
}

func writeValidationError(w http.ResponseWriter, result *validation.ValidationResult) {
	details := make([]FieldError, 0, len(result.Errors))
	for _, e := range result.Errors {
		details = append(details, FieldError{Field: e.Field, Message: e.Message})
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   string(apperrors.ErrCodeInvalidRequest),
		Message: "Request validation failed",
		Details: details,
	})
}
