// internal/workers/catalog/index-product-catalog/catalog.go
package indexproductcatalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/metrics"
	"credit-workers/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultSort     = "name"
)

// Sortable product fields and their columns.
var sortColumns = map[string]string{
	"id":            "id",
	"name":          "name",
	"category":      "category",
	"currency":      "currency",
	"minimumAmount": "minimum_amount",
	"maximumAmount": "maximum_amount",
	"minimumRate":   "minimum_rate",
	"maximumRate":   "maximum_rate",
}

// ProductQuery selects a page of active products. MinAmount keeps products
// whose maximum reaches it, MaxAmount those whose minimum does not exceed it.
// Page is zero-based; Sort is a field name with an optional ",asc" or ",desc".
type ProductQuery struct {
	Category  string
	Currency  string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Page      int
	Size      int
	Sort      string
}

// ProductPage is one page of products. CurrentPage is one-based.
type ProductPage struct {
	Data        []models.ProductCatalogEntry `json:"data"`
	Total       int                          `json:"total"`
	TotalPages  int                          `json:"totalPages"`
	CurrentPage int                          `json:"currentPage"`
}

func (q *ProductQuery) normalize() error {
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	switch {
	case q.Page < 0:
		return apperrors.NewInvalidRequestError("page must not be negative")
	case q.Size < 1 || q.Size > MaxPageSize:
		return apperrors.NewInvalidRequestError(fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	case q.MinAmount != nil && q.MinAmount.IsNegative():
		return apperrors.NewInvalidRequestError("minAmount must not be negative")
	case q.MaxAmount != nil && q.MaxAmount.IsNegative():
		return apperrors.NewInvalidRequestError("maxAmount must not be negative")
	case q.MinAmount != nil && q.MaxAmount != nil && q.MinAmount.GreaterThan(*q.MaxAmount):
		return apperrors.NewInvalidRequestError("minAmount must not exceed maxAmount")
	}
	return nil
}

func (q ProductQuery) orderBy() (string, error) {
	field, direction, _ := strings.Cut(q.Sort, ",")
	column, ok := sortColumns[strings.TrimSpace(field)]
	if !ok {
		return "", apperrors.NewInvalidRequestError(fmt.Sprintf("cannot sort by %q", field))
	}
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "asc":
		return column + " ASC, id ASC", nil
	case "desc":
		return column + " DESC, id ASC", nil
	default:
		return "", apperrors.NewInvalidRequestError(fmt.Sprintf("unknown sort direction %q", direction))
	}
}

func (q ProductQuery) where() (string, []interface{}) {
	clauses := []string{"active = TRUE"}
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.Currency != "" {
		add("currency = $%d", q.Currency)
	}
	if q.MinAmount != nil {
		add("maximum_amount >= $%d", *q.MinAmount)
	}
	if q.MaxAmount != nil {
		add("minimum_amount <= $%d", *q.MaxAmount)
	}
	return strings.Join(clauses, " AND "), args
}

// Find returns one page of the active products matching q.
func (s *PostgresProductSource) Find(ctx context.Context, q ProductQuery) (page *ProductPage, err error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	order, err := q.orderBy()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveExternalCall("postgres", "find_products", start, err) }()

	where, args := q.where()
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM credit_products WHERE "+where, args...); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find_products", err)
	}

	page = &ProductPage{
		Data:        []models.ProductCatalogEntry{},
		Total:       total,
		TotalPages:  (total + q.Size - 1) / q.Size,
		CurrentPage: q.Page + 1,
	}
	offset := q.Page * q.Size
	if offset >= total {
		return page, nil
	}

	query := fmt.Sprintf("%s\nWHERE %s\nORDER BY %s\nLIMIT $%d OFFSET $%d",
		productSelect, where, order, len(args)+1, len(args)+2)
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, q.Size, offset)...); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find_products", err)
	}
	page.Data = toProducts(rows)
	return page, nil
}

// Get returns the active product with the given id, or PRODUCT_NOT_FOUND.
func (s *PostgresProductSource) Get(ctx context.Context, productID string) (product *models.ProductCatalogEntry, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall("postgres", "get_product", start, err) }()

	var row productRow
	err = s.db.GetContext(ctx, &row, productSelect+"\nWHERE id = $1 AND active = TRUE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewProductNotFoundError(productID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_product", err)
	}
	p := row.product()
	return &p, nil
}
