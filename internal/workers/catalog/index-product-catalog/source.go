// internal/workers/catalog/index-product-catalog/source.go
package indexproductcatalog

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"credit-workers/internal/models"
)

const productSelect = `
SELECT id, name, description, category, subcategory, currency,
       COALESCE(term, '') AS term,
       minimum_amount, maximum_amount, minimum_rate, maximum_rate,
       requirements, features, benefits, active
FROM credit_products`

const activeProductsQuery = productSelect + `
WHERE active = TRUE
ORDER BY id`

// ProductSource lists the products of the system of record.
type ProductSource interface {
	ListActive(ctx context.Context) ([]models.ProductCatalogEntry, error)
}

type productRow struct {
	models.ProductCatalogEntry
	Requirements pq.StringArray `db:"requirements"`
	Features     pq.StringArray `db:"features"`
	Benefits     pq.StringArray `db:"benefits"`
}

type PostgresProductSource struct {
	db *sqlx.DB
}

func NewPostgresProductSource(db *sqlx.DB) *PostgresProductSource {
	return &PostgresProductSource{db: db}
}

func (s *PostgresProductSource) ListActive(ctx context.Context) ([]models.ProductCatalogEntry, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, activeProductsQuery); err != nil {
		return nil, err
	}

	return toProducts(rows), nil
}

func (row productRow) product() models.ProductCatalogEntry {
	p := row.ProductCatalogEntry
	p.Requirements = []string(row.Requirements)
	p.Features = []string(row.Features)
	p.Benefits = []string(row.Benefits)
	p.AllowedRanks = models.AllowedRanksFor(p.MaximumAmount)
	return p
}

func toProducts(rows []productRow) []models.ProductCatalogEntry {
	products := make([]models.ProductCatalogEntry, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.product())
	}
	return products
}
