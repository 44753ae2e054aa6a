// internal/workers/catalog/index-product-catalog/product.go
package indexproductcatalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"credit-workers/internal/models"
)

var (
	productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	maxRate          = decimal.NewFromInt(100)
	currencies       = map[string]bool{"S/": true, "USD": true}
)

const maxProductIDLength = 20

// validateProduct returns every violated constraint of p.
func validateProduct(p models.ProductCatalogEntry) []string {
	var problems []string

	switch {
	case p.ID == "":
		problems = append(problems, "id is required")
	case len(p.ID) > maxProductIDLength || !productIDPattern.MatchString(p.ID):
		problems = append(problems, "id must be up to 20 letters, digits, '-' or '_'")
	}
	for field, value := range map[string]string{
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"subcategory": p.Subcategory,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, field+" is required")
		}
	}
	if !currencies[p.Currency] {
		problems = append(problems, "currency must be S/ or USD")
	}

	if !p.MinimumAmount.IsPositive() || !p.MaximumAmount.IsPositive() {
		problems = append(problems, "amounts must be positive")
	} else if !p.MinimumAmount.LessThan(p.MaximumAmount) {
		problems = append(problems, "minimumAmount must be less than maximumAmount")
	}

	if p.MinimumRate.IsNegative() || p.MaximumRate.GreaterThan(maxRate) {
		problems = append(problems, "rates must be between 0 and 100")
	} else if p.MinimumRate.GreaterThan(p.MaximumRate) {
		problems = append(problems, "minimumRate must not exceed maximumRate")
	}

	if len(p.Requirements) == 0 {
		problems = append(problems, "requirements must not be empty")
	}
	if len(p.Features) == 0 {
		problems = append(problems, "features must not be empty")
	}
	if len(p.Benefits) == 0 {
		problems = append(problems, "benefits must not be empty")
	}

	// map iteration above is unordered
	sort.Strings(problems)
	return problems
}

// EmbeddingText renders the product as the text it is searched by.
func EmbeddingText(p models.ProductCatalogEntry) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(" ")
	b.WriteString(p.Description)
	fmt.Fprintf(&b, " Category: %s", p.Category)
	if p.Subcategory != "" {
		fmt.Fprintf(&b, " Subcategory: %s", p.Subcategory)
	}
	fmt.Fprintf(&b, " Currency: %s", p.Currency)
	fmt.Fprintf(&b, " Minimum amount: %s", p.MinimumAmount.String())
	fmt.Fprintf(&b, " Maximum amount: %s", p.MaximumAmount.String())
	if len(p.Requirements) > 0 {
		fmt.Fprintf(&b, " Requirements: %s", strings.Join(p.Requirements, ", "))
	}
	if len(p.Features) > 0 {
		fmt.Fprintf(&b, " Features: %s", strings.Join(p.Features, ", "))
	}
	if len(p.Benefits) > 0 {
		fmt.Fprintf(&b, " Benefits: %s", strings.Join(p.Benefits, ", "))
	}
	return strings.TrimSpace(b.String())
}
