package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"credit-workers/internal/common/database"
	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// errIndexAlreadyExists is the error type Elasticsearch answers when an index
// is created twice, e.g. by two replicas starting together.
const errIndexAlreadyExists = "resource_already_exists_exception"

// ElasticsearchIndex implements Index with approximate kNN over dense_vector fields.
type ElasticsearchIndex struct {
	es     *database.ElasticsearchClient
	client *elasticsearch.Client
	logger logger.Logger
}

func NewElasticsearchIndex(es *database.ElasticsearchClient, log logger.Logger) *ElasticsearchIndex {
	return &ElasticsearchIndex{
		es:     es,
		client: es.Client,
		logger: log.WithFields(map[string]interface{}{"vectorIndex": "elasticsearch"}),
	}
}

func numCandidates(k int) int {
	n := k * 10
	if n < 100 {
		n = 100
	}
	return n
}

func buildFilter(filter Filter) []map[string]interface{} {
	clauses := make([]map[string]interface{}, 0, len(filter))
	for _, c := range filter {
		switch c.Op {
		case OpEq, OpContains:
			// term on a keyword array matches any element
			clauses = append(clauses, map[string]interface{}{
				"term": map[string]interface{}{c.Field: c.Value},
			})
		case OpGte, OpLte:
			clauses = append(clauses, map[string]interface{}{
				"range": map[string]interface{}{
					c.Field: map[string]interface{}{string(c.Op): c.Value},
				},
			})
		}
	}
	return clauses
}

// BuildSearchBody returns the kNN request body for a query.
func BuildSearchBody(vector []float32, k int, filter Filter) map[string]interface{} {
	knn := map[string]interface{}{
		"field":          EmbeddingField,
		"query_vector":   vector,
		"k":              k,
		"num_candidates": numCandidates(k),
	}
	if len(filter) > 0 {
		knn["filter"] = map[string]interface{}{
			"bool": map[string]interface{}{"filter": buildFilter(filter)},
		}
	}
	return map[string]interface{}{
		"knn":  knn,
		"size": k,
		"_source": map[string]interface{}{
			"excludes": []string{EmbeddingField},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticsearchIndex) Search(ctx context.Context, index string, vector []float32, k int, filter Filter) (hits []Hit, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall("elasticsearch", "knn_search", start, err) }()

	body, err := json.Marshal(BuildSearchBody(vector, k, filter))
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, apperrors.NewSearchTimeoutError(index)
		}
		return nil, apperrors.NewSearchQueryFailedError(index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(index, fmt.Errorf("search error: %s", res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(index, fmt.Errorf("decode response: %w", err))
	}

	hits = make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}

	e.logger.Debug("knn search completed", map[string]interface{}{
		"index": index,
		"k":     k,
		"hits":  len(hits),
	})
	return hits, nil
}

func (e *ElasticsearchIndex) Upsert(ctx context.Context, index, id string, doc interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall("elasticsearch", "index_document", start, err) }()

	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewIndexingFailedError(index, id, err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewIndexingFailedError(index, id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewIndexingFailedError(index, id, fmt.Errorf("index error: %s", res.String()))
	}
	return nil
}

// EnsureIndex creates the index with a cosine dense_vector mapping when it does not exist.
func (e *ElasticsearchIndex) EnsureIndex(ctx context.Context, index string, mapping Mapping) error {
	exists, err := e.es.IndexExists(ctx, index)
	if err != nil {
		return apperrors.NewIndexingFailedError(index, "", err)
	}
	if exists {
		return nil
	}

	properties := map[string]interface{}{
		EmbeddingField: map[string]interface{}{
			"type":       "dense_vector",
			"dims":       mapping.Dimensions,
			"index":      true,
			"similarity": "cosine",
		},
	}
	for field, typ := range mapping.Fields {
		properties[field] = map[string]interface{}{"type": typ}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"mappings": map[string]interface{}{"properties": properties},
	})

	res, err := e.client.Indices.Create(
		index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return apperrors.NewIndexingFailedError(index, "", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		cause := decodeError(res)
		if cause.Type == errIndexAlreadyExists {
			e.logger.Debug("vector index created concurrently", map[string]interface{}{"index": index})
			return nil
		}
		return apperrors.NewIndexingFailedError(index, "",
			fmt.Errorf("create index error [%d] %s: %s", res.StatusCode, cause.Type, cause.Reason))
	}

	e.logger.Info("vector index created", map[string]interface{}{
		"index":      index,
		"dimensions": mapping.Dimensions,
	})
	return nil
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// decodeError reads the error cause of a failed response. Unparseable bodies
// yield an empty type.
func decodeError(res *esapi.Response) errorCause {
	var body struct {
		Error errorCause `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return errorCause{Reason: res.Status()}
	}
	return body.Error
}
