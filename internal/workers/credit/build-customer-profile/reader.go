// internal/workers/credit/build-customer-profile/reader.go
package buildcustomerprofile

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"credit-workers/internal/models"
)

// customerEmploymentQuery returns one row per employment record (at most two,
// current employment first) or a single row with NULL employment columns.
const customerEmploymentQuery = `
SELECT c.identity_document, c.monthly_income, c.current_debt,
       eh.start_date, eh.end_date, eh.income
FROM customers c
LEFT JOIN LATERAL (
    SELECT start_date, end_date, income
    FROM employment_history
    WHERE customer_id = c.id
    ORDER BY end_date DESC NULLS FIRST, start_date DESC
    LIMIT 2
) eh ON TRUE
WHERE c.identity_document = $1`

// CustomerData is what the database knows about a customer.
type CustomerData struct {
	IdentityDocument  string
	MonthlyIncome     decimal.Decimal
	CurrentDebt       decimal.Decimal
	EmploymentHistory []models.EmploymentRecord
}

// EmploymentReader loads customer employment data. A nil result with a nil
// error means the customer does not exist.
type EmploymentReader interface {
	GetCustomerEmploymentData(ctx context.Context, identityDocument string) (*CustomerData, error)
}

type employmentRow struct {
	IdentityDocument string              `db:"identity_document"`
	MonthlyIncome    decimal.Decimal     `db:"monthly_income"`
	CurrentDebt      decimal.Decimal     `db:"current_debt"`
	StartDate        sql.NullTime        `db:"start_date"`
	EndDate          sql.NullTime        `db:"end_date"`
	Income           decimal.NullDecimal `db:"income"`
}

type PostgresReader struct {
	db *sqlx.DB
}

func NewPostgresReader(db *sqlx.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

func (r *PostgresReader) GetCustomerEmploymentData(ctx context.Context, identityDocument string) (*CustomerData, error) {
	var rows []employmentRow
	if err := r.db.SelectContext(ctx, &rows, customerEmploymentQuery, identityDocument); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	data := &CustomerData{
		IdentityDocument:  rows[0].IdentityDocument,
		MonthlyIncome:     rows[0].MonthlyIncome,
		CurrentDebt:       rows[0].CurrentDebt,
		EmploymentHistory: make([]models.EmploymentRecord, 0, len(rows)),
	}
	for _, row := range rows {
		if !row.StartDate.Valid {
			continue
		}
		record := models.EmploymentRecord{
			StartDate: row.StartDate.Time,
			Income:    row.Income.Decimal,
		}
		if row.EndDate.Valid {
			end := row.EndDate.Time
			record.EndDate = &end
		}
		data.EmploymentHistory = append(data.EmploymentHistory, record)
	}
	return data, nil
}

