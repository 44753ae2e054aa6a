// internal/workers/catalog/index-product-catalog/models.go
package indexproductcatalog

import "credit-workers/internal/models"

type Input struct {
	Products         []models.ProductCatalogEntry `json:"products"`
	SyncFromDatabase bool                         `json:"syncFromDatabase"`
}

type EntryError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type Output struct {
	Success           bool         `json:"success"`
	Message           string       `json:"message"`
	TotalProducts     int          `json:"totalProducts"`
	IndexedProducts   int          `json:"indexedProducts"`
	FailedProducts    int          `json:"failedProducts"`
	IndexedProductIDs []string     `json:"indexedProductIds"`
	Errors            []EntryError `json:"errors,omitempty"`
}
