// internal/workers/credit/resolve-customer-rank/models.go
package resolvecustomerrank

import "credit-workers/internal/models"

type Input struct {
	SemanticDescription string `json:"semanticDescription"`
}

// Output carries the resolved rank. RankID is UNDEFINED when nothing matched.
type Output struct {
	RankID             string                   `json:"rankId"`
	Rank               *models.RankCatalogEntry `json:"rank,omitempty"`
	SemanticConfidence float64                  `json:"semanticConfidence"`
}
