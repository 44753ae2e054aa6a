// internal/workers/catalog/index-product-catalog/handler.go
package indexproductcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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
	TaskType = "index-product-catalog"
)

var (
	ErrInvalidProduct = errors.New("CATALOG_VALIDATION_FAILED")
	ErrEmbedProduct   = errors.New("EMBEDDING_FAILED")
	ErrIndexProduct   = errors.New("INDEXING_FAILED")
	ErrSourceFailed   = errors.New("QUERY_EXECUTION_FAILED")
	ErrNothingToIndex = errors.New("INVALID_REQUEST")
)

// Filterable fields of the product index.
var productIndexMapping = map[string]string{
	"id":            "keyword",
	"category":      "keyword",
	"subcategory":   "keyword",
	"currency":      "keyword",
	"active":        "boolean",
	"minimumAmount": "double",
	"maximumAmount": "double",
	"minimumRate":   "double",
	"maximumRate":   "double",
	"allowedRanks":  "keyword",
}

type Handler struct {
	config       *Config
	embedder     embedding.Provider
	index        vectorindex.Index
	source       ProductSource
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewHandler builds the handler. source may be nil when database sync is not available.
func NewHandler(config *Config, embedder embedding.Provider, index vectorindex.Index, source ProductSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		embedder:     embedder,
		index:        index,
		source:       source,
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
	if input.SyncFromDatabase {
		return h.SyncFromDatabase(ctx)
	}
	return h.IndexProducts(ctx, input.Products)
}

// SyncFromDatabase re-indexes every active product of the credit_products table.
func (h *Handler) SyncFromDatabase(ctx context.Context) (*Output, error) {
	if h.source == nil {
		return nil, fmt.Errorf("%w: no product database configured", ErrSourceFailed)
	}

	start := time.Now()
	products, err := h.source.ListActive(ctx)
	metrics.ObserveExternalCall("postgres", "list_products", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceFailed, err)
	}

	h.logger.Info("syncing products from database", map[string]interface{}{
		"products": len(products),
	})
	if len(products) == 0 {
		return &Output{
			Success:           true,
			Message:           "No active products to index",
			IndexedProductIDs: []string{},
		}, nil
	}
	return h.IndexProducts(ctx, products)
}

// IndexProducts indexes each product independently and reports per-entry failures.
func (h *Handler) IndexProducts(ctx context.Context, products []models.ProductCatalogEntry) (*Output, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: products must not be empty", ErrNothingToIndex)
	}
	if err := h.ensureIndex(ctx); err != nil {
		return nil, err
	}

	output := &Output{
		TotalProducts:     len(products),
		IndexedProductIDs: []string{},
	}
	for _, p := range products {
		entry, err := h.indexProduct(ctx, p)
		if err != nil {
			output.FailedProducts++
			output.Errors = append(output.Errors, EntryError{ID: p.ID, Message: err.Error()})
			h.logger.Warn("product not indexed", map[string]interface{}{
				"productId": p.ID,
				"error":     err,
			})
			continue
		}
		output.IndexedProducts++
		output.IndexedProductIDs = append(output.IndexedProductIDs, entry.ID)
	}

	output.Success = output.IndexedProducts > 0
	output.Message = fmt.Sprintf("Indexed %d/%d products", output.IndexedProducts, output.TotalProducts)

	h.logger.Info("product catalog indexed", map[string]interface{}{
		"total":   output.TotalProducts,
		"indexed": output.IndexedProducts,
		"failed":  output.FailedProducts,
	})
	return output, nil
}

// IndexProduct validates, enriches and upserts a single product.
func (h *Handler) IndexProduct(ctx context.Context, p models.ProductCatalogEntry) (*models.ProductCatalogEntry, error) {
	if err := h.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return h.indexProduct(ctx, p)
}

func (h *Handler) indexProduct(ctx context.Context, p models.ProductCatalogEntry) (*models.ProductCatalogEntry, error) {
	if problems := validateProduct(p); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, ", "))
	}

	entry := p
	entry.AllowedRanks = models.AllowedRanksFor(p.MaximumAmount)

	vector, err := h.embedder.Embed(ctx, EmbeddingText(entry))
	if err != nil {
		return nil, fmt.Errorf("%w: product %s: %v", ErrEmbedProduct, p.ID, err)
	}
	entry.Embedding = vector

	if err := h.index.Upsert(ctx, h.config.ProductIndex, entry.ID, entry); err != nil {
		return nil, fmt.Errorf("%w: product %s: %v", ErrIndexProduct, p.ID, err)
	}
	return &entry, nil
}

func (h *Handler) ensureIndex(ctx context.Context) error {
	err := h.index.EnsureIndex(ctx, h.config.ProductIndex, vectorindex.Mapping{
		Dimensions: h.config.Dimensions,
		Fields:     productIndexMapping,
	})
	if err != nil {
		return fmt.Errorf("%w: ensure index %s: %v", ErrIndexProduct, h.config.ProductIndex, err)
	}
	return nil
}

func mapErrorToCode(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidProduct):
		return apperrors.ErrCodeCatalogValidation
	case errors.Is(err, ErrNothingToIndex):
		return apperrors.ErrCodeInvalidRequest
	case errors.Is(err, ErrEmbedProduct):
		return apperrors.ErrCodeEmbeddingFailed
	case errors.Is(err, ErrIndexProduct):
		return apperrors.ErrCodeIndexingFailed
	case errors.Is(err, ErrSourceFailed):
		return apperrors.ErrCodeQueryExecutionFailed
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
		return apperrors.NewCatalogValidationError("product", err.Error())
	case apperrors.ErrCodeInvalidRequest:
		return apperrors.NewInvalidRequestError(err.Error())
	case apperrors.ErrCodeEmbeddingFailed:
		return apperrors.NewEmbeddingFailedError("product-catalog", err)
	case apperrors.ErrCodeIndexingFailed:
		return apperrors.NewIndexingFailedError("product-catalog", "", err)
	case apperrors.ErrCodeQueryExecutionFailed:
		return apperrors.NewQueryExecutionFailedError("list_products", err)
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
