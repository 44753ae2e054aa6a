// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"credit-workers/internal/common/validation"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault loads the registry at path, or returns the built-in one when path is empty.
func LoadOrDefault(path string) (*ActivityRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRegistry(path)
}

// Save writes the registry as indented JSON.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks document against the input schema of taskType. Activities
// without a schema accept anything.
func (r *ActivityRegistry) Validate(taskType string, document interface{}) (*validation.ValidationResult, error) {
	activity, ok := r.Find(taskType)
	if !ok {
		return nil, fmt.Errorf("activity %q is not registered", taskType)
	}
	if len(activity.InputSchema) == 0 {
		return &validation.ValidationResult{Valid: true}, nil
	}
	return validation.ValidateAgainstSchema(activity.InputSchema, document)
}

// Check verifies registry consistency: unique ids and task types, schemas that compile.
func (r *ActivityRegistry) Check() []error {
	var errs []error
	ids := map[string]bool{}
	taskTypes := map[string]bool{}
	for _, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" {
			errs = append(errs, fmt.Errorf("activity %q: id and taskType are required", a.ID))
			continue
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate activity id %q", a.ID))
		}
		if taskTypes[a.TaskType] {
			errs = append(errs, fmt.Errorf("duplicate task type %q", a.TaskType))
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true

		if _, err := a.TimeoutDuration(); err != nil {
			errs = append(errs, err)
		}
		switch a.FailureMode {
		case "", FailureFail, FailureDegrade:
		default:
			errs = append(errs, fmt.Errorf("activity %q: unknown failure mode %q", a.ID, a.FailureMode))
		}
		if a.Degrades() && len(a.ErrorCodes) > 0 {
			errs = append(errs, fmt.Errorf("activity %q: degrading activities declare no error codes", a.ID))
		}

		if len(a.InputSchema) > 0 {
			if _, err := validation.ValidateAgainstSchema(a.InputSchema, map[string]interface{}{}); err != nil {
				errs = append(errs, fmt.Errorf("activity %q: %w", a.ID, err))
			}
		}
	}
	return errs
}
