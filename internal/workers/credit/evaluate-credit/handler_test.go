// internal/workers/credit/evaluate-credit/handler_test.go
package evaluatecredit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/models"
	matchcreditproducts "credit-workers/internal/workers/credit/match-credit-products"
)

// ==========================
// Test Helper Functions
// ==========================

type stubProfiles struct {
	profile *models.CustomerProfile
	err     error
}

func (s *stubProfiles) Build(_ context.Context, identityDocument string) (*models.CustomerProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := *s.profile
	p.IdentityDocument = identityDocument
	return &p, nil
}

type stubRanks struct {
	rank       *models.RankCatalogEntry
	confidence float64
	calls      int
}

func (s *stubRanks) Resolve(context.Context, string) (*models.RankCatalogEntry, float64) {
	s.calls++
	return s.rank, s.confidence
}

type stubProducts struct {
	candidates []models.ScoredProduct
	queries    []matchcreditproducts.Query
}

func (s *stubProducts) Match(_ context.Context, q matchcreditproducts.Query) []models.ScoredProduct {
	s.queries = append(s.queries, q)
	return s.candidates
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, RecommendedTerm: "12 months"}
}

func testProfile() *models.CustomerProfile {
	return &models.CustomerProfile{
		MonthlyIncome:       decimal.NewFromInt(5000),
		CurrentDebt:         decimal.Zero,
		SemanticDescription: "Customer with income of 5000.00 and current debt of 0.00. Has only current employment with no employment interruptions.",
	}
}

func scored(id string, score float64, requirements []string) models.ScoredProduct {
	return models.ScoredProduct{
		Product: models.ProductCatalogEntry{
			ID:           id,
			Name:         "Product " + id,
			MinimumRate:  decimal.RequireFromString("13.5"),
			MaximumRate:  decimal.RequireFromString("29.9"),
			Requirements: requirements,
			Active:       true,
		},
		Score: score,
	}
}

func newTestHandler(t *testing.T, profiles ProfileBuilder, ranks RankResolver, products ProductMatcher) *Handler {
	h := NewHandler(createTestConfig(), profiles, ranks, products, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h
}

func gold() *models.RankCatalogEntry {
	return &models.RankCatalogEntry{ID: models.TierGold, Name: "Gold"}
}

// ==========================
// Evaluate Tests
// ==========================

func TestHandler_Evaluate_Success(t *testing.T) {
	products := &stubProducts{candidates: []models.ScoredProduct{
		scored("A", 0.72, []string{"Payslips"}),
		scored("B", 0.91, nil),
		scored("C", 0.7245, []string{"ID card", "Guarantor"}),
	}}
	ranks := &stubRanks{rank: gold(), confidence: 0.85}
	h := newTestHandler(t, &stubProfiles{profile: testProfile()}, ranks, products)

	result, err := h.Evaluate(context.Background(), Request{
		IdentityDocument: "12345678",
		RequestedAmount:  decimal.NewFromInt(15000),
		Currency:         "S/",
	})
	require.NoError(t, err)

	cp := result.ClientProfile
	assert.Equal(t, "12345678", cp.IdentityDocument)
	assert.Equal(t, 700, cp.CreditScore)
	assert.Equal(t, RiskMedium, cp.RiskLevel)
	assert.True(t, decimal.NewFromInt(12000).Equal(cp.ApprovedAmount))
	assert.Equal(t, "12 months", cp.RecommendedTerm)
	assert.Equal(t, models.TierGold, cp.SemanticRank)
	assert.Equal(t, 0.85, cp.SemanticConfidence)
	assert.Equal(t, testProfile().SemanticDescription, cp.SemanticDescription)

	require.Len(t, result.EligibleProducts, 3)
	assert.Equal(t, "B", result.EligibleProducts[0].ID)
	assert.Equal(t, 91, result.EligibleProducts[0].EligibilityScore)
	assert.Equal(t, "Recommended by semantic search (relevance: 0.91)", result.EligibleProducts[0].Recommendation)
	assert.NotNil(t, result.EligibleProducts[0].Conditions)
	assert.Empty(t, result.EligibleProducts[0].Conditions)

	// equal scores keep input order
	assert.Equal(t, "A", result.EligibleProducts[1].ID)
	assert.Equal(t, "C", result.EligibleProducts[2].ID)
	assert.Equal(t, 72, result.EligibleProducts[2].EligibilityScore)

	for i, p := range result.EligibleProducts {
		assert.True(t, decimal.NewFromInt(15000).Equal(p.ApprovedAmount))
		assert.True(t, decimal.RequireFromString("13.5").Equal(p.ApprovedRate))
		if i > 0 {
			assert.GreaterOrEqual(t, result.EligibleProducts[i-1].EligibilityScore, p.EligibilityScore)
		}
	}

	assert.Equal(t, 3, result.Summary.TotalEligibleProducts)
	require.NotNil(t, result.Summary.BestOption)
	assert.Equal(t, "B", result.Summary.BestOption.ProductID)
	assert.Equal(t, "Best semantic relevance (score: 91)", result.Summary.BestOption.Reason)
	assert.Equal(t, fixedNow, result.Summary.EvaluationDate)

	require.Len(t, products.queries, 1)
	assert.Equal(t, models.TierGold, products.queries[0].RankID)
	assert.Equal(t, "S/", products.queries[0].Currency)
}

func TestHandler_Evaluate_UnresolvedRank(t *testing.T) {
	products := &stubProducts{}
	h := newTestHandler(t, &stubProfiles{profile: testProfile()}, &stubRanks{confidence: 0.5}, products)

	result, err := h.Evaluate(context.Background(), Request{
		IdentityDocument: "12345678",
		RequestedAmount:  decimal.RequireFromString("1000.55"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.TierUndefined, result.ClientProfile.SemanticRank)
	assert.Equal(t, 600, result.ClientProfile.CreditScore)
	assert.Equal(t, RiskHigh, result.ClientProfile.RiskLevel)
	assert.Equal(t, 0.5, result.ClientProfile.SemanticConfidence)
	assert.Equal(t, "600.33", result.ClientProfile.ApprovedAmount.StringFixed(2))

	assert.NotNil(t, result.EligibleProducts)
	assert.Empty(t, result.EligibleProducts)
	assert.Nil(t, result.Summary.BestOption)
	assert.Equal(t, 0, result.Summary.TotalEligibleProducts)

	require.Len(t, products.queries, 1)
	assert.Equal(t, models.TierUndefined, products.queries[0].RankID)
}

func TestHandler_Evaluate_TierTable(t *testing.T) {
	tests := []struct {
		name         string
		tier         string
		wantScore    int
		wantRisk     string
		wantApproved string
	}{
		{name: "premium", tier: models.TierPremium, wantScore: 800, wantRisk: RiskLow, wantApproved: "8000.00"},
		{name: "platinum", tier: models.TierPlatinum, wantScore: 750, wantRisk: RiskLow, wantApproved: "8000.00"},
		{name: "gold", tier: models.TierGold, wantScore: 700, wantRisk: RiskMedium, wantApproved: "8000.00"},
		{name: "silver", tier: models.TierSilver, wantScore: 650, wantRisk: RiskMedium, wantApproved: "8000.00"},
		{name: "bronze", tier: models.TierBronze, wantScore: 600, wantRisk: RiskHigh, wantApproved: "6000.00"},
		{name: "unknown tier", tier: "DIAMOND", wantScore: 600, wantRisk: RiskHigh, wantApproved: "6000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranks := &stubRanks{rank: &models.RankCatalogEntry{ID: tt.tier}, confidence: 0.85}
			h := newTestHandler(t, &stubProfiles{profile: testProfile()}, ranks, &stubProducts{})

			result, err := h.Evaluate(context.Background(), Request{
				IdentityDocument: "12345678",
				RequestedAmount:  decimal.NewFromInt(10000),
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantScore, result.ClientProfile.CreditScore)
			assert.Equal(t, tt.wantRisk, result.ClientProfile.RiskLevel)
			assert.Equal(t, tt.wantApproved, result.ClientProfile.ApprovedAmount.StringFixed(2))
		})
	}
}

func TestCreditScore_MonotonicInTier(t *testing.T) {
	for i := 1; i < len(models.AllTiers); i++ {
		assert.GreaterOrEqual(t, CreditScore(models.AllTiers[i]), CreditScore(models.AllTiers[i-1]))
	}
	assert.Equal(t, CreditScore(models.TierBronze), CreditScore(models.TierUndefined))
}

func TestHandler_Evaluate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "customer not found passes through",
			err:      apperrors.NewCustomerNotFoundError("99999999"),
			wantCode: apperrors.ErrCodeCustomerNotFound,
		},
		{
			name:     "query timeout fails evaluation",
			err:      apperrors.NewQueryTimeoutError("customer_employment"),
			wantCode: apperrors.ErrCodeEvaluationFailed,
		},
		{
			name:     "unexpected error fails evaluation",
			err:      errors.New("connection reset"),
			wantCode: apperrors.ErrCodeEvaluationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranks := &stubRanks{rank: gold()}
			products := &stubProducts{}
			h := newTestHandler(t, &stubProfiles{err: tt.err}, ranks, products)

			result, err := h.Evaluate(context.Background(), Request{
				IdentityDocument: "99999999",
				RequestedAmount:  decimal.NewFromInt(100),
			})
			assert.Nil(t, result)
			assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
			assert.Zero(t, ranks.calls)
			assert.Empty(t, products.queries)
		})
	}
}

func TestHandler_Evaluate_RepeatableRead(t *testing.T) {
	products := &stubProducts{candidates: []models.ScoredProduct{scored("A", 0.8, []string{"Payslips"})}}
	h := NewHandler(createTestConfig(), &stubProfiles{profile: testProfile()}, &stubRanks{rank: gold(), confidence: 0.85}, products, logger.NewTestLogger(t))

	req := Request{IdentityDocument: "12345678", RequestedAmount: decimal.NewFromInt(5000)}
	first, err := h.Evaluate(context.Background(), req)
	require.NoError(t, err)
	second, err := h.Evaluate(context.Background(), req)
	require.NoError(t, err)

	second.Summary.EvaluationDate = first.Summary.EvaluationDate
	assert.Equal(t, first, second)
}

// ==========================
// Execute / Validation Tests
// ==========================

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "valid dni", req: Request{IdentityDocument: "12345678", RequestedAmount: decimal.NewFromInt(1)}},
		{name: "valid ruc", req: Request{IdentityDocument: "20123456789", RequestedAmount: decimal.NewFromInt(500)}},
		{name: "too short", req: Request{IdentityDocument: "1234567", RequestedAmount: decimal.NewFromInt(500)}, wantErr: true},
		{name: "too long", req: Request{IdentityDocument: "201234567890", RequestedAmount: decimal.NewFromInt(500)}, wantErr: true},
		{name: "letters", req: Request{IdentityDocument: "1234567A", RequestedAmount: decimal.NewFromInt(500)}, wantErr: true},
		{name: "amount below one", req: Request{IdentityDocument: "12345678", RequestedAmount: decimal.RequireFromString("0.99")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr {
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	products := &stubProducts{candidates: []models.ScoredProduct{scored("A", 0.8, nil)}}
	h := newTestHandler(t, &stubProfiles{profile: testProfile()}, &stubRanks{rank: gold(), confidence: 0.85}, products)

	output, err := h.Execute(context.Background(), &Input{IdentityDocument: "12345678", RequestedAmount: decimal.NewFromInt(15000)})
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, output.RiskLevel)
	assert.Equal(t, 1, output.TotalEligibleProducts)
	assert.Equal(t, "A", output.BestProductID)

	data, err := json.Marshal(output.Evaluation)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"approvedAmount":12000`)
	assert.Contains(t, string(data), `"conditions":[]`)
	assert.NotContains(t, string(data), "evaluationId")

	_, err = h.Execute(context.Background(), &Input{IdentityDocument: "abc", RequestedAmount: decimal.NewFromInt(15000)})
	assert.Error(t, err)
}

func TestEvaluationID(t *testing.T) {
	ctx := WithEvaluationID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", EvaluationID(ctx))
	assert.NotEmpty(t, EvaluationID(context.Background()))
}
