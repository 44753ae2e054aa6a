// internal/workers/credit/match-credit-products/models.go
package matchcreditproducts

import (
	"github.com/shopspring/decimal"

	"credit-workers/internal/models"
)

type Input struct {
	RankID          string          `json:"rankId"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	Currency        string          `json:"currency,omitempty"`
}

// Query describes one product matching request.
type Query struct {
	RankID          string
	RequestedAmount decimal.Decimal
	Currency        string
}

type Output struct {
	Candidates     []models.ScoredProduct `json:"candidates"`
	CandidateCount int                    `json:"candidateCount"`
}
