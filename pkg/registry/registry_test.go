package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsConsistent(t *testing.T) {
	reg := Default()

	assert.Empty(t, reg.Check())
	for _, taskType := range []string{
		TaskBuildCustomerProfile, TaskResolveCustomerRank, TaskMatchCreditProducts,
		TaskEvaluateCredit, TaskIndexRankCatalog, TaskIndexProductCatalog,
	} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema, taskType)
	}
}

func TestValidate_EvaluateCredit(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantField string
	}{
		{name: "valid", doc: `{"identityDocument":"12345678","requestedAmount":15000}`, wantValid: true},
		{name: "valid with currency", doc: `{"identityDocument":"20123456789","requestedAmount":1,"currency":"USD"}`, wantValid: true},
		{name: "missing amount", doc: `{"identityDocument":"12345678"}`, wantField: "requestedAmount"},
		{name: "document too long", doc: `{"identityDocument":"123456789012","requestedAmount":5}`, wantField: "identityDocument"},
		{name: "amount below minimum", doc: `{"identityDocument":"12345678","requestedAmount":0.5}`, wantField: "requestedAmount"},
	}

	reg := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reg.Validate(TaskEvaluateCredit, []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.Summary())
			if !tt.wantValid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.wantField, result.Errors[0].Field)
			}
		})
	}
}

func TestValidate_UnknownTask(t *testing.T) {
	_, err := Default().Validate("send-email", map[string]interface{}{})
	assert.Error(t, err)
}

func TestCheck_Duplicates(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "a", TaskType: "x"},
		{ID: "a", TaskType: "x"},
		{ID: "", TaskType: "y"},
	}}
	assert.Len(t, reg.Check(), 3)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, Default().Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Activities, len(Default().Activities))

	result, err := loaded.Validate(TaskMatchCreditProducts, `{"rankId":"GOLD","requestedAmount":100}`)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)

	reg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", reg.Version)
}

func TestCheck_ActivitySettings(t *testing.T) {
	tests := []struct {
		name     string
		activity Activity
		wantErr  bool
	}{
		{name: "valid degrading", activity: Activity{ID: "a", TaskType: "a", FailureMode: FailureDegrade, Timeout: "5s"}},
		{name: "valid failing", activity: Activity{ID: "a", TaskType: "a", FailureMode: FailureFail, ErrorCodes: []string{"QUERY_TIMEOUT"}}},
		{name: "bad timeout", activity: Activity{ID: "a", TaskType: "a", Timeout: "soon"}, wantErr: true},
		{name: "negative timeout", activity: Activity{ID: "a", TaskType: "a", Timeout: "-1s"}, wantErr: true},
		{name: "unknown failure mode", activity: Activity{ID: "a", TaskType: "a", FailureMode: "ignore"}, wantErr: true},
		{name: "degrading with error codes", activity: Activity{ID: "a", TaskType: "a", FailureMode: FailureDegrade, ErrorCodes: []string{"SEARCH_TIMEOUT"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: []Activity{tt.activity}}
			if tt.wantErr {
				assert.Len(t, reg.Check(), 1)
			} else {
				assert.Empty(t, reg.Check())
			}
		})
	}
}

func TestDefault_FailureModes(t *testing.T) {
	reg := Default()

	for taskType, degrades := range map[string]bool{
		TaskBuildCustomerProfile: false,
		TaskResolveCustomerRank:  true,
		TaskMatchCreditProducts:  true,
		TaskEvaluateCredit:       false,
	} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.Equal(t, degrades, a.Degrades(), taskType)

		timeout, err := a.TimeoutDuration()
		require.NoError(t, err)
		assert.Positive(t, timeout, taskType)
	}
}

func TestValidate_RankCatalogTiers(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantValid bool
	}{
		{name: "known tiers", doc: `{"ranks":[{"id":"GOLD","name":"Gold"},{"id":"BRONZE","name":"Bronze"}]}`, wantValid: true},
		{name: "lower case tier", doc: `{"ranks":[{"id":"gold","name":"Gold"}]}`},
		{name: "unknown tier", doc: `{"ranks":[{"id":"DIAMOND","name":"Diamond"}]}`},
		{name: "unresolved marker", doc: `{"ranks":[{"id":"UNDEFINED","name":"Undefined"}]}`},
	}

	reg := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reg.Validate(TaskIndexRankCatalog, []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.Summary())
		})
	}
}
