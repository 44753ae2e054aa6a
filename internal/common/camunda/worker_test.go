package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
)

// ==========================
// Test doubles
// ==========================

type stubJobClient struct {
	completes, fails, throws int
}

func (s *stubJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	s.completes++
	return nil
}

func (s *stubJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	s.fails++
	return nil
}

func (s *stubJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	s.throws++
	return nil
}

type handlerFunc func(client worker.JobClient, job entities.Job)

func (f handlerFunc) Handle(client worker.JobClient, job entities.Job) { f(client, job) }

func newJob(taskType string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: taskType}}
}

// ==========================
// Instrument
// ==========================

func TestInstrument(t *testing.T) {
	tests := []struct {
		name          string
		taskType      string
		handle        func(client worker.JobClient)
		wantCompleted float64
	}{
		{
			name:          "completed job",
			taskType:      "test-completed",
			handle:        func(c worker.JobClient) { c.NewCompleteJobCommand() },
			wantCompleted: 1,
		},
		{
			name:          "failed with retries",
			taskType:      "test-failed",
			handle:        func(c worker.JobClient) { c.NewFailJobCommand() },
			wantCompleted: 0,
		},
		{
			name:          "bpmn error",
			taskType:      "test-thrown",
			handle:        func(c worker.JobClient) { c.NewThrowErrorCommand() },
			wantCompleted: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubJobClient{}
			var seen entities.Job

			h := Instrument(tt.taskType, handlerFunc(func(c worker.JobClient, job entities.Job) {
				seen = job
				tt.handle(c)
			}), nil)

			h(client, newJob(tt.taskType))

			assert.Equal(t, int64(42), seen.Key)
			assert.Equal(t, 1, client.completes+client.fails+client.throws)
			assert.Equal(t, tt.wantCompleted, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues(tt.taskType)))
		})
	}
}

// ==========================
// Connection retry
// ==========================

func TestWithRetry(t *testing.T) {
	rc := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	log := logger.NewTestLogger(t)

	t.Run("recovers from transient errors", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), rc, log, "topology", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("rpc error: code = Unavailable desc = connection refused")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), rc, log, "topology", func(context.Context) error {
			calls++
			return errors.New("permission denied")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after budget", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), rc, log, "topology", func(context.Context) error {
			calls++
			return errors.New("deadline exceeded")
		})
		assert.ErrorContains(t, err, "topology failed")
		assert.Equal(t, 4, calls)
	})
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("connection reset by peer")))
	assert.True(t, isRetryableZeebeError(errors.New("code = Unavailable")))
	assert.False(t, isRetryableZeebeError(errors.New("NOT_FOUND: process not found")))
}
