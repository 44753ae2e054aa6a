// pkg/registry/schema.go
package registry

import (
	"fmt"
	"time"
)

// Failure modes of an activity.
const (
	// FailureFail fails the job; the ErrorHandler decides between retry and BPMN error.
	FailureFail = "fail"
	// FailureDegrade completes the job with a fallback result and logs the failure.
	FailureDegrade = "degrade"
)

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	FailureMode          string                 `json:"failureMode,omitempty"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Tags                 []string               `json:"tags"`
}

// TimeoutDuration parses Timeout. An empty timeout is zero.
func (a Activity) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("activity %q: invalid timeout %q", a.ID, a.Timeout)
	}
	if d <= 0 {
		return 0, fmt.Errorf("activity %q: timeout must be positive", a.ID)
	}
	return d, nil
}

// Degrades reports whether failures of the activity are absorbed instead of failing the job.
func (a Activity) Degrades() bool {
	return a.FailureMode == FailureDegrade
}
