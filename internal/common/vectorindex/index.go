// Package vectorindex stores documents with an "embedding" field and answers
// filtered nearest-neighbour queries over them.
package vectorindex

import (
	"context"
	"encoding/json"
)

// EmbeddingField is the document field holding the vector.
const EmbeddingField = "embedding"

// Index is a vector-search service. Scores are similarities in [0,1], higher is
// closer, and hits come back ordered by descending score.
type Index interface {
	Search(ctx context.Context, index string, vector []float32, k int, filter Filter) ([]Hit, error)
	Upsert(ctx context.Context, index, id string, doc interface{}) error
	EnsureIndex(ctx context.Context, index string, mapping Mapping) error
}

// Hit is one search result.
type Hit struct {
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

// Decode unmarshals the hit's source document into v.
func (h Hit) Decode(v interface{}) error {
	return json.Unmarshal(h.Source, v)
}

// Mapping describes an index: vector size plus typed scalar fields used in filters.
type Mapping struct {
	Dimensions int
	Fields     map[string]string // field name -> keyword | boolean | double
}

// Operator is a filter comparison.
type Operator string

const (
	OpEq       Operator = "eq"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains" // array field holds Value
)

// Condition compares one document field with a value.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

// Filter is a conjunction of conditions. A nil Filter matches everything.
type Filter []Condition

func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Gte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

func Lte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpLte, Value: value}
}

func Contains(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}
