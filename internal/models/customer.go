// internal/models/customer.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true
}

// EmploymentRecord is one entry of a customer's employment history.
// A nil EndDate means current employment.
type EmploymentRecord struct {
	StartDate time.Time       `json:"startDate"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
	Income    decimal.Decimal `json:"income"`
}

// IsCurrent reports whether the record is the customer's current employment.
func (r EmploymentRecord) IsCurrent() bool {
	return r.EndDate == nil
}

// CustomerProfile is rebuilt from the database on every evaluation.
// EmploymentHistory is ordered most recent first and holds at most two records.
type CustomerProfile struct {
	IdentityDocument    string             `json:"identityDocument"`
	MonthlyIncome       decimal.Decimal    `json:"monthlyIncome"`
	CurrentDebt         decimal.Decimal    `json:"currentDebt"`
	EmploymentHistory   []EmploymentRecord `json:"employmentHistory"`
	EmploymentGapMonths int                `json:"employmentGapMonths"`
	SemanticDescription string             `json:"semanticDescription"`
}
