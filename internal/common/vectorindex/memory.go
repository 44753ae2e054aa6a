package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "credit-workers/internal/common/errors"
)

type memoryDoc struct {
	id     string
	vector []float32
	source json.RawMessage
	fields map[string]interface{}
}

// MemoryIndex is a brute-force cosine index for tests and local runs.
// Scores use the Elasticsearch cosine convention (1+cos)/2.
type MemoryIndex struct {
	mu      sync.RWMutex
	indices map[string][]*memoryDoc
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{indices: map[string][]*memoryDoc{}}
}

func (m *MemoryIndex) EnsureIndex(_ context.Context, index string, _ Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[index]; !ok {
		m.indices[index] = nil
	}
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, index, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewIndexingFailedError(index, id, err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return apperrors.NewIndexingFailedError(index, id, err)
	}

	var vector []float32
	if v, ok := fields[EmbeddingField]; ok {
		vb, _ := json.Marshal(v)
		_ = json.Unmarshal(vb, &vector)
	}
	if len(vector) == 0 {
		return apperrors.NewIndexingFailedError(index, id, fmt.Errorf("document has no %s", EmbeddingField))
	}
	delete(fields, EmbeddingField)
	source, _ := json.Marshal(fields)

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &memoryDoc{id: id, vector: vector, source: source, fields: fields}
	docs := m.indices[index]
	for i, existing := range docs {
		if existing.id == id {
			docs[i] = d
			return nil
		}
	}
	m.indices[index] = append(docs, d)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, index string, vector []float32, k int, filter Filter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs, ok := m.indices[index]
	if !ok {
		return nil, apperrors.NewIndexNotFoundError(index)
	}

	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		if !matches(d.fields, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:     d.id,
			Score:  (1 + cosine(vector, d.vector)) / 2,
			Source: d.source,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func matches(fields map[string]interface{}, filter Filter) bool {
	for _, c := range filter {
		v, ok := fields[c.Field]
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if !equal(v, c.Value) {
				return false
			}
		case OpGte, OpLte:
			fv, ok1 := toFloat(v)
			cv, ok2 := toFloat(c.Value)
			if !ok1 || !ok2 {
				return false
			}
			if c.Op == OpGte && fv < cv {
				return false
			}
			if c.Op == OpLte && fv > cv {
				return false
			}
		case OpContains:
			arr, ok := v.([]interface{})
			if !ok {
				return false
			}
			found := false
			for _, item := range arr {
				if equal(item, c.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		var f float64
		if _, err := fmt.Sscan(n, &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
