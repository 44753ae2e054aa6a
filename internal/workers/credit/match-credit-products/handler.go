// internal/workers/credit/match-credit-products/handler.go
package matchcreditproducts

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
	TaskType = "match-credit-products"

	queryFormat = "Customer with Rank %s requests a credit of %s"
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
	if !input.RequestedAmount.IsPositive() {
		return nil, apperrors.NewInvalidRequestError("requestedAmount must be positive")
	}
	rankID := strings.TrimSpace(input.RankID)
	if rankID == "" {
		rankID = models.TierUndefined
	}

	candidates := h.Match(ctx, Query{
		RankID:          rankID,
		RequestedAmount: input.RequestedAmount,
		Currency:        input.Currency,
	})
	return &Output{Candidates: candidates, CandidateCount: len(candidates)}, nil
}

// QueryText is the text embedded to search products for a rank and amount.
func QueryText(rankID string, amount fmt.Stringer) string {
	return fmt.Sprintf(queryFormat, rankID, amount.String())
}

// Match returns up to TopK active products whose amount range covers the
// requested amount, ordered by descending relevance. Failures are logged and
// yield an empty list.
func (h *Handler) Match(ctx context.Context, q Query) []models.ScoredProduct {
	ctx, cancel := context.WithTimeout(ctx, h.config.SearchTimeout)
	defer cancel()

	products, err := h.search(ctx, q)
	if err != nil {
		h.logger.Warn("product matching degraded", map[string]interface{}{
			"error":  err,
			"rankId": q.RankID,
			"index":  h.config.ProductIndex,
		})
		products = []models.ScoredProduct{}
	}

	metrics.ProductCandidates.Observe(float64(len(products)))
	h.logger.Info("products matched", map[string]interface{}{
		"rankId":          q.RankID,
		"requestedAmount": q.RequestedAmount.String(),
		"candidates":      len(products),
	})
	return products
}

func (h *Handler) filter(q Query) vectorindex.Filter {
	amount := q.RequestedAmount.InexactFloat64()
	filter := vectorindex.Filter{
		vectorindex.Eq("active", true),
		vectorindex.Lte("minimumAmount", amount),
		vectorindex.Gte("maximumAmount", amount),
	}
	if h.config.RankScopedMatching {
		filter = append(filter, vectorindex.Contains("allowedRanks", q.RankID))
	}
	if q.Currency != "" {
		filter = append(filter, vectorindex.Eq("currency", q.Currency))
	}
	return filter
}

func (h *Handler) search(ctx context.Context, q Query) ([]models.ScoredProduct, error) {
	vector, err := h.embedder.Embed(ctx, QueryText(q.RankID, q.RequestedAmount))
	if err != nil {
		return nil, err
	}

	hits, err := h.index.Search(ctx, h.config.ProductIndex, vector, h.config.TopK, h.filter(q))
	if err != nil {
		return nil, err
	}

	products := make([]models.ScoredProduct, 0, len(hits))
	for _, hit := range hits {
		var product models.ProductCatalogEntry
		if err := hit.Decode(&product); err != nil {
			h.logger.Warn("skipping undecodable product", map[string]interface{}{
				"productId": hit.ID,
				"error":     err,
			})
			continue
		}
		if product.ID == "" {
			product.ID = hit.ID
		}
		// The index compares amounts as doubles; re-check exactly.
		if !product.AcceptsAmount(q.RequestedAmount) {
			h.logger.Debug("dropping product outside amount range", map[string]interface{}{
				"productId": product.ID,
			})
			continue
		}
		if h.config.RankScopedMatching && !product.AllowsRank(q.RankID) {
			continue
		}
		product.Embedding = nil
		products = append(products, models.ScoredProduct{Product: product, Score: hit.Score})
	}
	return products, nil
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
