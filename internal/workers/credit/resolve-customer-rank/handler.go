// internal/workers/credit/resolve-customer-rank/handler.go
package resolvecustomerrank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"credit-workers/internal/common/embedding"
	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
	"credit-workers/internal/common/vectorindex"
	"credit-workers/internal/models"
)

const (
	TaskType = "resolve-customer-rank"

	// ResolvedConfidence is reported whenever the index returns a rank.
	ResolvedConfidence = 0.85
	// UnresolvedConfidence is reported when no rank could be resolved.
	UnresolvedConfidence = 0.5
)

type Handler struct {
	config       *Config
	embedder     embedding.Provider
	index        vectorindex.Index
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, embedder embedding.Provider, index vectorindex.Index, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		embedder:     embedder,
		index:        index,
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
	if strings.TrimSpace(input.SemanticDescription) == "" {
		return nil, apperrors.NewInvalidRequestError("semanticDescription is required")
	}

	rank, confidence := h.Resolve(ctx, input.SemanticDescription)
	output := &Output{
		RankID:             models.TierUndefined,
		Rank:               rank,
		SemanticConfidence: confidence,
	}
	if rank != nil {
		output.RankID = rank.ID
	}
	return output, nil
}

// Resolve classifies a semantic description against the rank catalog. It
// never fails: embedding or search errors are logged and reported as an
// unresolved rank.
func (h *Handler) Resolve(ctx context.Context, semanticDescription string) (*models.RankCatalogEntry, float64) {
	ctx, cancel := context.WithTimeout(ctx, h.config.SearchTimeout)
	defer cancel()

	rank, err := h.nearestRank(ctx, semanticDescription)
	if err != nil {
		metrics.RankResolutions.WithLabelValues("degraded").Inc()
		h.logger.Warn("rank resolution degraded", map[string]interface{}{
			"error": err,
			"index": h.config.RankIndex,
		})
		return nil, UnresolvedConfidence
	}
	if rank == nil {
		metrics.RankResolutions.WithLabelValues("unresolved").Inc()
		h.logger.Info("no rank matched", nil)
		return nil, UnresolvedConfidence
	}

	metrics.RankResolutions.WithLabelValues("resolved").Inc()
	h.logger.Info("rank resolved", map[string]interface{}{
		"rankId":     rank.ID,
		"confidence": ResolvedConfidence,
	})
	return rank, ResolvedConfidence
}

func (h *Handler) nearestRank(ctx context.Context, text string) (*models.RankCatalogEntry, error) {
	vector, err := h.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	hits, err := h.index.Search(ctx, h.config.RankIndex, vector, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	var rank models.RankCatalogEntry
	if err := hits[0].Decode(&rank); err != nil {
		return nil, fmt.Errorf("decode rank %s: %w", hits[0].ID, err)
	}
	if rank.ID == "" {
		rank.ID = hits[0].ID
	}
	rank.Embedding = nil
	return &rank, nil
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
