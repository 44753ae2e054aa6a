// internal/models/evaluation.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EvaluationResult is assembled fresh for each request and never persisted.
type EvaluationResult struct {
	ClientProfile    ClientProfile     `json:"clientProfile"`
	EligibleProducts []EligibleProduct `json:"eligibleProducts"`
	Summary          EvaluationSummary `json:"summary"`
}

type ClientProfile struct {
	IdentityDocument    string          `json:"identityDocument"`
	CreditScore         int             `json:"creditScore"`
	RiskLevel           string          `json:"riskLevel"`
	ApprovedAmount      decimal.Decimal `json:"approvedAmount"`
	RecommendedTerm     string          `json:"recommendedTerm"`
	SemanticRank        string          `json:"semanticRank"`
	SemanticConfidence  float64         `json:"semanticConfidence"`
	SemanticDescription string          `json:"semanticDescription"`
}

type EligibleProduct struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ApprovedAmount   decimal.Decimal `json:"approvedAmount"`
	ApprovedRate     decimal.Decimal `json:"approvedRate"`
	EligibilityScore int             `json:"eligibilityScore"`
	Recommendation   string          `json:"recommendation"`
	Conditions       []string        `json:"conditions"`
}

type EvaluationSummary struct {
	TotalEligibleProducts int         `json:"totalEligibleProducts"`
	BestOption            *BestOption `json:"bestOption,omitempty"`
	EvaluationDate        time.Time   `json:"evaluationDate"`
}

type BestOption struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}
