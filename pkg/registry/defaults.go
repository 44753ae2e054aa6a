package registry

import "credit-workers/internal/models"

// Task types served by this repository.
const (
	TaskBuildCustomerProfile = "build-customer-profile"
	TaskResolveCustomerRank  = "resolve-customer-rank"
	TaskMatchCreditProducts  = "match-credit-products"
	TaskEvaluateCredit       = "evaluate-credit"
	TaskIndexRankCatalog     = "index-rank-catalog"
	TaskIndexProductCatalog  = "index-product-catalog"
)

type schema = map[string]interface{}

var identityDocumentSchema = schema{
	"type":      "string",
	"pattern":   "^[0-9]{8,11}$",
	"minLength": 8,
	"maxLength": 11,
}

var amountSchema = schema{"type": "number", "minimum": 1}

var currencySchema = schema{"type": "string", "enum": []interface{}{"S/", "USD"}}

var rankSchema = schema{
	"type":     "object",
	"required": []interface{}{"id", "name"},
	"properties": schema{
		"id":          schema{"type": "string", "enum": tierEnum()},
		"name":        schema{"type": "string", "minLength": 1},
		"description": schema{"type": "string"},
	},
}

func tierEnum() []interface{} {
	tiers := make([]interface{}, 0, len(models.AllTiers))
	for _, tier := range models.AllTiers {
		tiers = append(tiers, tier)
	}
	return tiers
}

var nonEmptyStrings = schema{
	"type":     "array",
	"minItems": 1,
	"items":    schema{"type": "string", "minLength": 1},
}

var productSchema = schema{
	"type": "object",
	"required": []interface{}{
		"id", "name", "description", "category", "subcategory", "currency",
		"minimumAmount", "maximumAmount", "minimumRate", "maximumRate",
		"requirements", "features", "benefits",
	},
	"properties": schema{
		"id":            schema{"type": "string", "pattern": "^[A-Za-z0-9_-]{1,20}$"},
		"name":          schema{"type": "string", "minLength": 1, "maxLength": 100},
		"description":   schema{"type": "string", "minLength": 1, "maxLength": 1000},
		"category":      schema{"type": "string", "minLength": 1, "maxLength": 50},
		"subcategory":   schema{"type": "string", "minLength": 1, "maxLength": 100},
		"currency":      currencySchema,
		"term":          schema{"type": "string", "maxLength": 50},
		"minimumAmount": schema{"type": "number", "minimum": 0.01},
		"maximumAmount": schema{"type": "number", "minimum": 0.01},
		"minimumRate":   schema{"type": "number", "minimum": 0, "maximum": 100},
		"maximumRate":   schema{"type": "number", "minimum": 0, "maximum": 100},
		"requirements":  nonEmptyStrings,
		"features":      nonEmptyStrings,
		"benefits":      nonEmptyStrings,
		"active":        schema{"type": "boolean"},
	},
}

// Default returns the built-in registry of credit activities.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-10-16",
		Activities: []Activity{
			{
				ID:                   TaskBuildCustomerProfile,
				DisplayName:          "Build Customer Profile",
				Description:          "Loads income, debt and the two latest employment records and derives the semantic description",
				Category:             "credit",
				Version:              "1.0.0",
				TaskType:             TaskBuildCustomerProfile,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type":       "object",
					"required":   []interface{}{"identityDocument"},
					"properties": schema{"identityDocument": identityDocumentSchema},
				},
				ErrorCodes:  []string{"CUSTOMER_NOT_FOUND", "QUERY_TIMEOUT", "QUERY_EXECUTION_FAILED"},
				FailureMode: FailureFail,
				Timeout:     "3s",
				Retries:     3,
				Tags:        []string{"postgres"},
			},
			{
				ID:                   TaskResolveCustomerRank,
				DisplayName:          "Resolve Customer Rank",
				Description:          "Classifies a semantic description against the rank catalog by nearest neighbour",
				Category:             "credit",
				Version:              "1.0.0",
				TaskType:             TaskResolveCustomerRank,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type":     "object",
					"required": []interface{}{"semanticDescription"},
					"properties": schema{
						"semanticDescription": schema{"type": "string", "minLength": 1},
					},
				},
				FailureMode: FailureDegrade,
				Timeout:     "5s",
				Tags:        []string{"embedding", "vector-search"},
			},
			{
				ID:                   TaskMatchCreditProducts,
				DisplayName:          "Match Credit Products",
				Description:          "Retrieves active products whose amount range covers the request",
				Category:             "credit",
				Version:              "1.0.0",
				TaskType:             TaskMatchCreditProducts,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type":     "object",
					"required": []interface{}{"rankId", "requestedAmount"},
					"properties": schema{
						"rankId":          schema{"type": "string", "minLength": 1},
						"requestedAmount": amountSchema,
						"currency":        currencySchema,
					},
				},
				FailureMode: FailureDegrade,
				Timeout:     "5s",
				Tags:        []string{"embedding", "vector-search"},
			},
			{
				ID:                   TaskEvaluateCredit,
				DisplayName:          "Evaluate Credit",
				Description:          "Runs profile, rank resolution and product matching and assembles the evaluation",
				Category:             "credit",
				Version:              "1.0.0",
				TaskType:             TaskEvaluateCredit,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type":     "object",
					"required": []interface{}{"identityDocument", "requestedAmount"},
					"properties": schema{
						"identityDocument": identityDocumentSchema,
						"requestedAmount":  amountSchema,
						"currency":         currencySchema,
					},
				},
				ErrorCodes:  []string{"CUSTOMER_NOT_FOUND", "EVALUATION_FAILED"},
				FailureMode: FailureFail,
				Timeout:     "15s",
				Retries:     3,
			},
			{
				ID:                   TaskIndexRankCatalog,
				DisplayName:          "Index Rank Catalog",
				Description:          "Embeds rank descriptions and upserts them into the rank index",
				Category:             "catalog",
				Version:              "1.0.0",
				TaskType:             TaskIndexRankCatalog,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type":     "object",
					"required": []interface{}{"ranks"},
					"properties": schema{
						"ranks": schema{"type": "array", "minItems": 1, "maxItems": 50, "items": rankSchema},
					},
				},
				ErrorCodes:  []string{"EMBEDDING_FAILED", "INDEXING_FAILED"},
				FailureMode: FailureFail,
				Timeout:     "60s",
				Retries:     3,
			},
			{
				ID:                   TaskIndexProductCatalog,
				DisplayName:          "Index Product Catalog",
				Description:          "Derives allowed ranks, embeds and upserts credit products",
				Category:             "catalog",
				Version:              "1.0.0",
				TaskType:             TaskIndexProductCatalog,
				ImplementationStatus: "completed",
				InputSchema: schema{
					"type": "object",
					"properties": schema{
						"products":         schema{"type": "array", "items": productSchema},
						"syncFromDatabase": schema{"type": "boolean"},
					},
				},
				ErrorCodes:  []string{"CATALOG_VALIDATION_FAILED", "EMBEDDING_FAILED", "INDEXING_FAILED"},
				FailureMode: FailureFail,
				Timeout:     "120s",
				Retries:     3,
			},
		},
	}
}
