// internal/workers/credit/evaluate-credit/handler.go
package evaluatecredit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
	"credit-workers/internal/models"
	matchcreditproducts "credit-workers/internal/workers/credit/match-credit-products"
)

const (
	TaskType = "evaluate-credit"

	bestOptionFormat     = "Best semantic relevance (score: %d)"
	recommendationFormat = "Recommended by semantic search (relevance: %.2f)"
)

var (
	identityDocumentPattern = regexp.MustCompile(`^[0-9]{8,11}$`)
	minimumRequestedAmount  = decimal.NewFromInt(1)

	tracer = otel.Tracer("credit-workers/evaluate-credit")
)

type ProfileBuilder interface {
	Build(ctx context.Context, identityDocument string) (*models.CustomerProfile, error)
}

type RankResolver interface {
	Resolve(ctx context.Context, semanticDescription string) (*models.RankCatalogEntry, float64)
}

type ProductMatcher interface {
	Match(ctx context.Context, q matchcreditproducts.Query) []models.ScoredProduct
}

// Request is one credit evaluation request.
type Request struct {
	IdentityDocument string
	RequestedAmount  decimal.Decimal
	Currency         string
}

type Handler struct {
	config       *Config
	profiles     ProfileBuilder
	ranks        RankResolver
	products     ProductMatcher
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, profiles ProfileBuilder, ranks RankResolver, products ProductMatcher, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		profiles:     profiles,
		ranks:        ranks,
		products:     products,
		logger:       scoped,
		errorHandler: apperrors.NewErrorHandler(scoped),
		now:          time.Now,
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

	ctx = WithEvaluationID(ctx, fmt.Sprintf("job-%d", job.Key))
	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	req := Request{
		IdentityDocument: input.IdentityDocument,
		RequestedAmount:  input.RequestedAmount,
		Currency:         input.Currency,
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	result, err := h.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Evaluation:            result,
		RiskLevel:             result.ClientProfile.RiskLevel,
		TotalEligibleProducts: result.Summary.TotalEligibleProducts,
	}
	if result.Summary.BestOption != nil {
		output.BestProductID = result.Summary.BestOption.ProductID
	}
	return output, nil
}

// ValidateRequest rejects malformed documents and non-positive amounts.
func ValidateRequest(req Request) error {
	if !identityDocumentPattern.MatchString(req.IdentityDocument) {
		return apperrors.NewInvalidRequestError("identityDocument must be 8 to 11 digits")
	}
	if req.RequestedAmount.LessThan(minimumRequestedAmount) {
		return apperrors.NewInvalidRequestError("requestedAmount must be at least 1")
	}
	return nil
}

// Evaluate runs the pipeline: profile, rank resolution, product matching,
// scoring. Only the profile step can fail the evaluation; CUSTOMER_NOT_FOUND
// is returned as is and any other failure as EVALUATION_FAILED.
func (h *Handler) Evaluate(ctx context.Context, req Request) (*models.EvaluationResult, error) {
	evaluationID := EvaluationID(ctx)
	log := h.logger.WithFields(map[string]interface{}{"evaluationId": evaluationID})
	start := time.Now()

	ctx, span := tracer.Start(ctx, "credit.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("evaluation.id", evaluationID))

	log.Info("evaluation started", map[string]interface{}{
		"requestedAmount": req.RequestedAmount.String(),
	})

	profile, err := h.buildProfile(ctx, req.IdentityDocument)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile")
		if apperrors.IsCode(err, apperrors.ErrCodeCustomerNotFound) {
			metrics.CreditEvaluations.WithLabelValues("customer_not_found").Inc()
			log.Warn("customer not found", map[string]interface{}{
				"identityDocument": req.IdentityDocument,
			})
			return nil, err
		}
		metrics.CreditEvaluations.WithLabelValues("failed").Inc()
		log.Error("evaluation failed", map[string]interface{}{"error": err})
		return nil, apperrors.NewEvaluationFailedError(err)
	}

	rank, confidence := h.resolveRank(ctx, profile.SemanticDescription)
	tier := models.TierUndefined
	if rank != nil {
		tier = rank.ID
	}

	candidates := h.matchProducts(ctx, matchcreditproducts.Query{
		RankID:          tier,
		RequestedAmount: req.RequestedAmount,
		Currency:        req.Currency,
	})

	result := h.assemble(profile, tier, confidence, req.RequestedAmount, candidates)

	metrics.CreditEvaluations.WithLabelValues("completed").Inc()
	log.Info("evaluation completed", map[string]interface{}{
		"rank":             tier,
		"creditScore":      result.ClientProfile.CreditScore,
		"eligibleProducts": result.Summary.TotalEligibleProducts,
		"duration":         time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (h *Handler) buildProfile(ctx context.Context, identityDocument string) (*models.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "credit.build_profile")
	defer span.End()
	return h.profiles.Build(ctx, identityDocument)
}

func (h *Handler) resolveRank(ctx context.Context, description string) (*models.RankCatalogEntry, float64) {
	ctx, span := tracer.Start(ctx, "credit.resolve_rank")
	defer span.End()
	rank, confidence := h.ranks.Resolve(ctx, description)
	span.SetAttributes(
		attribute.Bool("rank.resolved", rank != nil),
		attribute.Float64("rank.confidence", confidence),
	)
	return rank, confidence
}

func (h *Handler) matchProducts(ctx context.Context, q matchcreditproducts.Query) []models.ScoredProduct {
	ctx, span := tracer.Start(ctx, "credit.match_products")
	defer span.End()
	candidates := h.products.Match(ctx, q)
	span.SetAttributes(attribute.Int("products.candidates", len(candidates)))
	return candidates
}

func (h *Handler) assemble(profile *models.CustomerProfile, tier string, confidence float64,
	requested decimal.Decimal, candidates []models.ScoredProduct) *models.EvaluationResult {

	eligible := make([]models.EligibleProduct, 0, len(candidates))
	for _, c := range candidates {
		conditions := c.Product.Requirements
		if conditions == nil {
			conditions = []string{}
		}
		eligible = append(eligible, models.EligibleProduct{
			ID:               c.Product.ID,
			Name:             c.Product.Name,
			ApprovedAmount:   requested,
			ApprovedRate:     c.Product.MinimumRate,
			EligibilityScore: int(math.Round(c.Score * 100)),
			Recommendation:   fmt.Sprintf(recommendationFormat, c.Score),
			Conditions:       conditions,
		})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].EligibilityScore > eligible[j].EligibilityScore
	})

	summary := models.EvaluationSummary{
		TotalEligibleProducts: len(eligible),
		EvaluationDate:        h.now().UTC(),
	}
	if len(eligible) > 0 {
		summary.BestOption = &models.BestOption{
			ProductID: eligible[0].ID,
			Reason:    fmt.Sprintf(bestOptionFormat, eligible[0].EligibilityScore),
		}
	}

	return &models.EvaluationResult{
		ClientProfile: models.ClientProfile{
			IdentityDocument:    profile.IdentityDocument,
			CreditScore:         CreditScore(tier),
			RiskLevel:           RiskLevel(tier),
			ApprovedAmount:      ApprovedAmount(tier, requested),
			RecommendedTerm:     h.config.RecommendedTerm,
			SemanticRank:        tier,
			SemanticConfidence:  confidence,
			SemanticDescription: profile.SemanticDescription,
		},
		EligibleProducts: eligible,
		Summary:          summary,
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
