// Package api exposes the credit evaluation pipeline and catalog ingestion over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/models"
	indexproductcatalog "credit-workers/internal/workers/catalog/index-product-catalog"
	indexrankcatalog "credit-workers/internal/workers/catalog/index-rank-catalog"
	evaluatecredit "credit-workers/internal/workers/credit/evaluate-credit"
	"credit-workers/pkg/registry"
)

const (
	maxBodyBytes       = 1 << 20
	EvaluationIDHeader = "X-Evaluation-Id"
)

type Evaluator interface {
	Evaluate(ctx context.Context, req evaluatecredit.Request) (*models.EvaluationResult, error)
}

type RankIndexer interface {
	IndexRank(ctx context.Context, rank indexrankcatalog.RankInput) (*models.RankCatalogEntry, error)
	IndexBatch(ctx context.Context, ranks []indexrankcatalog.RankInput) (*indexrankcatalog.Output, error)
}

type ProductIndexer interface {
	Execute(ctx context.Context, input *indexproductcatalog.Input) (*indexproductcatalog.Output, error)
}

// ProductCatalog reads the products of the system of record.
type ProductCatalog interface {
	Find(ctx context.Context, q indexproductcatalog.ProductQuery) (*indexproductcatalog.ProductPage, error)
	Get(ctx context.Context, productID string) (*models.ProductCatalogEntry, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Registry  *registry.ActivityRegistry
	Evaluator Evaluator
	Ranks     RankIndexer
	Products  ProductIndexer
	Catalog   ProductCatalog
	Checks    map[string]HealthCheck
	Logger    logger.Logger
}

type Server struct {
	registry  *registry.ActivityRegistry
	evaluator Evaluator
	ranks     RankIndexer
	products  ProductIndexer
	catalog   ProductCatalog
	checks    map[string]HealthCheck
	logger    logger.Logger
	mux       *http.ServeMux
}

func NewServer(opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	s := &Server{
		registry:  reg,
		evaluator: opts.Evaluator,
		ranks:     opts.Ranks,
		products:  opts.Products,
		catalog:   opts.Catalog,
		checks:    opts.Checks,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "api"}),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /api/v1/ranks/upload", s.handleRankUpload)
	s.mux.HandleFunc("POST /api/v1/ranks/upload-batch", s.handleRankBatch)
	s.mux.HandleFunc("POST /api/v1/products/index", s.handleProductIndex)
	s.mux.HandleFunc("GET /api/v1/products", s.handleProductList)
	s.mux.HandleFunc("GET /api/v1/products/{productId}", s.handleProductGet)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// NewHTTPServer wraps the API in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			return
		}
		s.logger.Info("http request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Milliseconds(),
		})
	})
}

// readValidated reads the body and validates it against the input schema of taskType.
// It writes the error response itself and returns nil on failure.
func (s *Server) readValidated(w http.ResponseWriter, r *http.Request, taskType string) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.NewInvalidRequestError("request body could not be read"))
		return nil
	}
	if !json.Valid(body) {
		writeError(w, apperrors.NewInvalidRequestError("malformed JSON body"))
		return nil
	}

	result, err := s.registry.Validate(taskType, body)
	if err != nil {
		writeError(w, err)
		return nil
	}
	if !result.Valid {
		writeValidationError(w, result)
		return nil
	}
	return body
}

type evaluateRequest struct {
	IdentityDocument string          `json:"identityDocument"`
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	Currency         string          `json:"currency,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body := s.readValidated(w, r, registry.TaskEvaluateCredit)
	if body == nil {
		return
	}

	var req evaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	evalReq := evaluatecredit.Request{
		IdentityDocument: req.IdentityDocument,
		RequestedAmount:  req.RequestedAmount,
		Currency:         req.Currency,
	}
	if err := evaluatecredit.ValidateRequest(evalReq); err != nil {
		writeError(w, err)
		return
	}

	id := uuid.NewString()
	w.Header().Set(EvaluationIDHeader, id)
	ctx := evaluatecredit.WithEvaluationID(r.Context(), id)

	result, err := s.evaluator.Evaluate(ctx, evalReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRankUpload(w http.ResponseWriter, r *http.Request) {
	var rank indexrankcatalog.RankInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rank); err != nil {
		writeError(w, apperrors.NewInvalidRequestError("malformed JSON body"))
		return
	}

	entry, err := s.ranks.IndexRank(r.Context(), rank)
	if err != nil {
		writeError(w, indexrankcatalog.ToStandardError(err))
		return
	}
	entry.Embedding = nil
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRankBatch(w http.ResponseWriter, r *http.Request) {
	body := s.readValidated(w, r, registry.TaskIndexRankCatalog)
	if body == nil {
		return
	}

	var input indexrankcatalog.Input
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := s.ranks.IndexBatch(r.Context(), input.Ranks)
	if err != nil {
		writeError(w, indexrankcatalog.ToStandardError(err))
		return
	}
	writeJSON(w, http.StatusCreated, output)
}

func (s *Server) handleProductIndex(w http.ResponseWriter, r *http.Request) {
	body := s.readValidated(w, r, registry.TaskIndexProductCatalog)
	if body == nil {
		return
	}

	var input indexproductcatalog.Input
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := s.products.Execute(r.Context(), &input)
	if err != nil {
		writeError(w, indexproductcatalog.ToStandardError(err))
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (s *Server) handleProductList(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := s.catalog.Find(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.Get(r.Context(), r.PathValue("productId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// productQuery reads the list filters and pagination from the query string.
func productQuery(r *http.Request) (indexproductcatalog.ProductQuery, error) {
	values := r.URL.Query()
	q := indexproductcatalog.ProductQuery{
		Category: values.Get("category"),
		Currency: values.Get("currency"),
		Sort:     values.Get("sort"),
	}

	var err error
	if q.MinAmount, err = decimalParam(values.Get("minAmount"), "minAmount"); err != nil {
		return q, err
	}
	if q.MaxAmount, err = decimalParam(values.Get("maxAmount"), "maxAmount"); err != nil {
		return q, err
	}
	if q.Page, err = intParam(values.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.Size, err = intParam(values.Get("size"), "size"); err != nil {
		return q, err
	}
	return q, nil
}

func decimalParam(raw, name string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(name + " must be a number")
	}
	return &d, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInvalidRequestError(name + " must be an integer")
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"dependency": name,
				"error":      err,
			})
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": results})
}
