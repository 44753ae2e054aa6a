// internal/models/catalog.go
package models

import (
	"github.com/shopspring/decimal"
)

// Membership tiers, lowest first.
const (
	TierBronze    = "BRONZE"
	TierSilver    = "SILVER"
	TierGold      = "GOLD"
	TierPlatinum  = "PLATINUM"
	TierPremium   = "PREMIUM"
	TierUndefined = "UNDEFINED"
)

// AllTiers lists every membership tier, lowest first.
var AllTiers = []string{TierBronze, TierSilver, TierGold, TierPlatinum, TierPremium}

var (
	goldThreshold   = decimal.NewFromInt(100000)
	silverThreshold = decimal.NewFromInt(50000)
)

// RankCatalogEntry is a membership tier as stored in the rank index.
type RankCatalogEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// ProductCatalogEntry is a credit product as stored in the product index.
type ProductCatalogEntry struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Category      string          `json:"category" db:"category"`
	Subcategory   string          `json:"subcategory" db:"subcategory"`
	Currency      string          `json:"currency" db:"currency"`
	Term          string          `json:"term,omitempty" db:"term"`
	MinimumAmount decimal.Decimal `json:"minimumAmount" db:"minimum_amount"`
	MaximumAmount decimal.Decimal `json:"maximumAmount" db:"maximum_amount"`
	MinimumRate   decimal.Decimal `json:"minimumRate" db:"minimum_rate"`
	MaximumRate   decimal.Decimal `json:"maximumRate" db:"maximum_rate"`
	Requirements  []string        `json:"requirements" db:"-"`
	Features      []string        `json:"features" db:"-"`
	Benefits      []string        `json:"benefits" db:"-"`
	Active        bool            `json:"active" db:"active"`
	AllowedRanks  []string        `json:"allowedRanks" db:"-"`
	Embedding     []float32       `json:"embedding,omitempty" db:"-"`
}

// AcceptsAmount reports whether the product is active and amount is inside its range.
func (p ProductCatalogEntry) AcceptsAmount(amount decimal.Decimal) bool {
	return p.Active &&
		p.MinimumAmount.LessThanOrEqual(amount) &&
		p.MaximumAmount.GreaterThanOrEqual(amount)
}

// AllowsRank reports whether rankID is in the product's allowed ranks.
func (p ProductCatalogEntry) AllowsRank(rankID string) bool {
	for _, r := range p.AllowedRanks {
		if r == rankID {
			return true
		}
	}
	return false
}

// AllowedRanksFor derives the tiers allowed to request a product from its maximum amount.
func AllowedRanksFor(maximumAmount decimal.Decimal) []string {
	switch {
	case maximumAmount.GreaterThanOrEqual(goldThreshold):
		return []string{TierGold, TierPlatinum, TierPremium}
	case maximumAmount.GreaterThanOrEqual(silverThreshold):
		return []string{TierSilver, TierGold, TierPlatinum, TierPremium}
	default:
		out := make([]string, len(AllTiers))
		copy(out, AllTiers)
		return out
	}
}

// ScoredProduct is a product returned by vector search with its similarity in [0,1].
type ScoredProduct struct {
	Product ProductCatalogEntry `json:"product"`
	Score   float64             `json:"score"`
}
