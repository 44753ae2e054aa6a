// internal/workers/credit/build-customer-profile/handler.go
package buildcustomerprofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/jmoiron/sqlx"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
	"credit-workers/internal/models"
)

const (
	TaskType = "build-customer-profile"

	queryType = "customer_employment"
)

type Handler struct {
	config       *Config
	reader       EmploymentReader
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, db *sqlx.DB, log logger.Logger) *Handler {
	return NewHandlerWithReader(config, NewPostgresReader(db), log)
}

func NewHandlerWithReader(config *Config, reader EmploymentReader, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		reader:       reader,
		logger:       scoped,
		errorHandler: apperrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	doc := strings.TrimSpace(input.IdentityDocument)
	if doc == "" {
		return nil, apperrors.NewInvalidRequestError("identityDocument is required")
	}

	profile, err := h.Build(ctx, doc)
	if err != nil {
		return nil, err
	}

	return &Output{
		CustomerProfile:     profile,
		SemanticDescription: profile.SemanticDescription,
	}, nil
}

// Build loads the customer's data and derives the profile and its semantic
// description. A missing customer yields CUSTOMER_NOT_FOUND; a read that
// exceeds the query timeout yields QUERY_TIMEOUT.
func (h *Handler) Build(ctx context.Context, identityDocument string) (*models.CustomerProfile, error) {
	queryCtx, cancel := context.WithTimeout(ctx, h.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	data, err := h.reader.GetCustomerEmploymentData(queryCtx, identityDocument)
	metrics.ObserveExternalCall("postgres", queryType, start, err)
	if err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewQueryTimeoutError(queryType)
		}
		return nil, apperrors.NewQueryExecutionFailedError(queryType, err)
	}
	if data == nil {
		h.logger.Warn("customer not found", map[string]interface{}{
			"identityDocument": identityDocument,
		})
		return nil, apperrors.NewCustomerNotFoundError(identityDocument)
	}

	profile := newProfile(data)

	h.logger.Info("customer profile built", map[string]interface{}{
		"identityDocument":  identityDocument,
		"employmentRecords": len(profile.EmploymentHistory),
		"gapMonths":         profile.EmploymentGapMonths,
		"duration":          time.Since(start).Milliseconds(),
	})

	return profile, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
