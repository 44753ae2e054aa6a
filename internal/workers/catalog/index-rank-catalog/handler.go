// internal/workers/catalog/index-rank-catalog/handler.go
package indexrankcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"credit-workers/internal/common/embedding"
	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/vectorindex"
	"credit-workers/internal/models"
)

const (
	TaskType = "index-rank-catalog"
)

var (
	ErrInvalidRank  = errors.New("CATALOG_VALIDATION_FAILED")
	ErrEmbedRank    = errors.New("EMBEDDING_FAILED")
	ErrIndexRank    = errors.New("INDEXING_FAILED")
	ErrInvalidBatch = errors.New("INVALID_REQUEST")
)

var rankIndexMapping = map[string]string{
	"id":          "keyword",
	"name":        "keyword",
	"description": "text",
}

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
		h.errorHandler.HandleJobError(ctx, client, job, ToStandardError(err))
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	return h.IndexBatch(ctx, input.Ranks)
}

// IndexRank validates, embeds and upserts a single rank.
func (h *Handler) IndexRank(ctx context.Context, rank RankInput) (*models.RankCatalogEntry, error) {
	if err := h.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return h.indexRank(ctx, rank)
}

// IndexBatch indexes 1 to MaxBatchSize ranks. Entries are processed
// independently; a failing entry is reported and does not stop the batch.
func (h *Handler) IndexBatch(ctx context.Context, ranks []RankInput) (*Output, error) {
	if len(ranks) == 0 || len(ranks) > h.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch must hold between 1 and %d ranks, got %d",
			ErrInvalidBatch, h.config.MaxBatchSize, len(ranks))
	}
	if err := h.ensureIndex(ctx); err != nil {
		return nil, err
	}

	output := &Output{
		TotalRanks:     len(ranks),
		CreatedRankIDs: []string{},
	}
	for _, rank := range ranks {
		entry, err := h.indexRank(ctx, rank)
		if err != nil {
			output.FailedRanks++
			output.Errors = append(output.Errors, EntryError{ID: rank.ID, Message: err.Error()})
			h.logger.Warn("rank not indexed", map[string]interface{}{
				"rankId": rank.ID,
				"error":  err,
			})
			continue
		}
		output.CreatedRanks++
		output.CreatedRankIDs = append(output.CreatedRankIDs, entry.ID)
	}

	output.Success = output.CreatedRanks > 0
	output.Message = fmt.Sprintf("Batch processing completed: %d/%d ranks created successfully",
		output.CreatedRanks, output.TotalRanks)

	h.logger.Info("rank batch indexed", map[string]interface{}{
		"total":   output.TotalRanks,
		"created": output.CreatedRanks,
		"failed":  output.FailedRanks,
	})
	return output, nil
}

func validateRank(rank RankInput) error {
	var problems []string
	switch id := strings.TrimSpace(rank.ID); {
	case id == "":
		problems = append(problems, "id is required")
	case !isTier(id):
		problems = append(problems, fmt.Sprintf("id must be one of %s", strings.Join(models.AllTiers, ", ")))
	}
	if strings.TrimSpace(rank.Name) == "" {
		problems = append(problems, "name is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRank, strings.Join(problems, ", "))
	}
	return nil
}

// isTier reports whether id names a membership tier. Ids are case sensitive:
// scoring looks tiers up by their exact upper-case name.
func isTier(id string) bool {
	for _, tier := range models.AllTiers {
		if id == tier {
			return true
		}
	}
	return false
}

// embeddingText is what the rank is classified by; the name stands in for a
// missing description.
func embeddingText(rank RankInput) string {
	if d := strings.TrimSpace(rank.Description); d != "" {
		return d
	}
	return rank.Name
}

func (h *Handler) indexRank(ctx context.Context, rank RankInput) (*models.RankCatalogEntry, error) {
	if err := validateRank(rank); err != nil {
		return nil, err
	}

	vector, err := h.embedder.Embed(ctx, embeddingText(rank))
	if err != nil {
		return nil, fmt.Errorf("%w: rank %s: %v", ErrEmbedRank, rank.ID, err)
	}

	entry := &models.RankCatalogEntry{
		ID:          strings.TrimSpace(rank.ID),
		Name:        rank.Name,
		Description: rank.Description,
		Embedding:   vector,
	}

	if err := h.index.Upsert(ctx, h.config.RankIndex, entry.ID, entry); err != nil {
		return nil, fmt.Errorf("%w: rank %s: %v", ErrIndexRank, entry.ID, err)
	}
	return entry, nil
}

func (h *Handler) ensureIndex(ctx context.Context) error {
	err := h.index.EnsureIndex(ctx, h.config.RankIndex, vectorindex.Mapping{
		Dimensions: h.config.Dimensions,
		Fields:     rankIndexMapping,
	})
	if err != nil {
		return fmt.Errorf("%w: ensure index %s: %v", ErrIndexRank, h.config.RankIndex, err)
	}
	return nil
}

func mapErrorToCode(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidRank):
		return apperrors.ErrCodeCatalogValidation
	case errors.Is(err, ErrInvalidBatch):
		return apperrors.ErrCodeInvalidRequest
	case errors.Is(err, ErrEmbedRank):
		return apperrors.ErrCodeEmbeddingFailed
	case errors.Is(err, ErrIndexRank):
		return apperrors.ErrCodeIndexingFailed
	default:
		return apperrors.ErrCodeInternal
	}
}

// ToStandardError converts a catalog error for job failures and HTTP responses.
func ToStandardError(err error) *apperrors.StandardError {
	if stdErr, ok := apperrors.As(err); ok {
		return stdErr
	}
	switch mapErrorToCode(err) {
	case apperrors.ErrCodeCatalogValidation:
		return apperrors.NewCatalogValidationError("rank", err.Error())
	case apperrors.ErrCodeInvalidRequest:
		return apperrors.NewInvalidRequestError(err.Error())
	case apperrors.ErrCodeEmbeddingFailed:
		return apperrors.NewEmbeddingFailedError("rank-catalog", err)
	case apperrors.ErrCodeIndexingFailed:
		return apperrors.NewIndexingFailedError("rank-catalog", "", err)
	default:
		return apperrors.NewInternalError(err)
	}
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
