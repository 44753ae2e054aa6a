// internal/workers/credit/evaluate-credit/models.go
package evaluatecredit

import (
	"github.com/shopspring/decimal"

	"credit-workers/internal/models"
)

type Input struct {
	IdentityDocument string          `json:"identityDocument"`
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	Currency         string          `json:"currency,omitempty"`
}

// Output exposes the evaluation plus flat variables for BPMN gateways.
type Output struct {
	Evaluation            *models.EvaluationResult `json:"evaluation"`
	RiskLevel             string                   `json:"riskLevel"`
	TotalEligibleProducts int                      `json:"totalEligibleProducts"`
	BestProductID         string                   `json:"bestProductId,omitempty"`
}
