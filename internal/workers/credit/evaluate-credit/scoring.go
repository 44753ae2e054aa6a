// internal/workers/credit/evaluate-credit/scoring.go
package evaluatecredit

import (
	"github.com/shopspring/decimal"

	"credit-workers/internal/models"
)

const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// creditScores is a fixed per-tier lookup. It is a placeholder heuristic, not
// a credit model: the only property it guarantees is that better tiers never
// score lower than worse ones.
var creditScores = map[string]int{
	models.TierPremium:  800,
	models.TierPlatinum: 750,
	models.TierGold:     700,
	models.TierSilver:   650,
	models.TierBronze:   600,
}

const defaultCreditScore = 600

var (
	standardApprovalRatio = decimal.RequireFromString("0.8")
	reducedApprovalRatio  = decimal.RequireFromString("0.6")
)

// CreditScore returns the heuristic score for a tier; unknown tiers score as BRONZE.
func CreditScore(tier string) int {
	if score, ok := creditScores[tier]; ok {
		return score
	}
	return defaultCreditScore
}

func RiskLevel(tier string) string {
	switch tier {
	case models.TierPremium, models.TierPlatinum:
		return RiskLow
	case models.TierGold, models.TierSilver:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ApprovedAmount applies the tier's approval ratio, rounded to cents.
// High-risk tiers (BRONZE and unresolved) get the reduced ratio.
func ApprovedAmount(tier string, requested decimal.Decimal) decimal.Decimal {
	ratio := standardApprovalRatio
	if RiskLevel(tier) == RiskHigh {
		ratio = reducedApprovalRatio
	}
	return requested.Mul(ratio).Round(2)
}
