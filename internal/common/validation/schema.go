package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins all errors into a single line.
func (r *ValidationResult) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// ValidateAgainstSchema validates a document (Go value or raw JSON bytes)
// against a JSON schema given as a Go map.
func ValidateAgainstSchema(schema map[string]interface{}, document interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema)

	var documentLoader gojsonschema.JSONLoader
	switch d := document.(type) {
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(d)
	case string:
		documentLoader = gojsonschema.NewStringLoader(d)
	default:
		documentLoader = gojsonschema.NewGoLoader(d)
	}

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(e),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// fieldName reports the offending property, using the missing property name
// for "required" errors which gojsonschema attributes to the parent.
func fieldName(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			if parent := e.Field(); parent != "" && parent != "(root)" {
				return parent + "." + p
			}
			return p
		}
	}
	return e.Field()
}
