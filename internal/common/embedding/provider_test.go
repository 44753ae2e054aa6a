package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"credit-workers/internal/common/config"
	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
)

// ==========================
// OpenAI-compatible client
// ==========================

func embeddingsHandler(t *testing.T, vec []float32, check func(r *http.Request, body openAIRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if check != nil {
			check(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"index": 0, "embedding": vec}},
		})
	}
}

func TestOpenAIClient_Embed(t *testing.T) {
	srv := httptest.NewServer(embeddingsHandler(t, []float32{0.1, 0.2, 0.3}, func(r *http.Request, body openAIRequest) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		assert.Equal(t, 3, body.Dimensions)
		assert.Equal(t, "hello", body.Input)
	}))
	defer srv.Close()

	c := NewOpenAIClient(&OpenAIConfig{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 3,
	}, logger.NewTestLogger(t))

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIClient_AzureRoute(t *testing.T) {
	srv := httptest.NewServer(embeddingsHandler(t, []float32{1, 2}, func(r *http.Request, body openAIRequest) {
		assert.Equal(t, "/openai/deployments/ada/embeddings", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, body.Model)
	}))
	defer srv.Close()

	c := NewOpenAIClient(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		APIVersion: "2024-02-01",
		Model:      "ada",
	}, logger.NewTestLogger(t))

	_, err := c.Embed(context.Background(), "hola")
	require.NoError(t, err)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		responses []int
		dims      int
		wantCalls int32
		wantCode  apperrors.ErrorCode
	}{
		{name: "retries throttling", responses: []int{429, 200}, wantCalls: 2},
		{name: "retries server errors until budget", responses: []int{503, 502, 500}, wantCalls: 3, wantCode: apperrors.ErrCodeEmbeddingFailed},
		{name: "client error is final", responses: []int{400}, wantCalls: 1, wantCode: apperrors.ErrCodeEmbeddingFailed},
		{name: "dimension mismatch", responses: []int{200}, dims: 8, wantCalls: 1, wantCode: apperrors.ErrCodeEmbeddingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.responses[len(tt.responses)-1]
				if int(n) <= len(tt.responses) {
					status = tt.responses[n-1]
				}
				if status != http.StatusOK {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(status)
					return
				}
				_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
			}))
			defer srv.Close()

			c := NewOpenAIClient(&OpenAIConfig{
				BaseURL:    srv.URL,
				Model:      "text-embedding-ada-002",
				Dimensions: tt.dims,
				MaxRetries: 2,
			}, logger.NewTestLogger(t))

			vec, err := c.Embed(context.Background(), "text")
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Len(t, vec, 2)
				return
			}
			assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 3}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, "slow")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingTimeout), "got %v", err)
}

func callSamples(t *testing.T, dependency, operation, status string) uint64 {
	var m dto.Metric
	observer := metrics.ExternalCallDuration.WithLabelValues(dependency, operation, status)
	require.NoError(t, observer.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestOpenAIClient_ObservesOneSamplePerEmbed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 2}, logger.NewTestLogger(t))

	before := callSamples(t, "embedding", "openai", "ok")
	_, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, before+1, callSamples(t, "embedding", "openai", "ok"), "retries count as one call")
}

// ==========================
// Gemini client
// ==========================

type fakeModels struct {
	errs   []error
	calls  int
	config *genai.EmbedContentConfig
	model  string
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.25, 0.75}}},
	}, nil
}

func TestGeminiClient_Embed(t *testing.T) {
	models := &fakeModels{}
	g := newGeminiClient(&GeminiConfig{Model: "gemini-embedding-001", Dimensions: 2}, models, logger.NewTestLogger(t))

	vec, err := g.Embed(context.Background(), "texto")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.75}, vec)
	assert.Equal(t, "gemini-embedding-001", models.model)
	require.NotNil(t, models.config.OutputDimensionality)
	assert.Equal(t, int32(2), *models.config.OutputDimensionality)
	assert.Equal(t, "SEMANTIC_SIMILARITY", models.config.TaskType)
}

func TestGeminiClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "transient then success", errs: []error{genai.APIError{Code: 503}}, wantCalls: 2},
		{name: "bad request is final", errs: []error{genai.APIError{Code: 400}}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := &fakeModels{errs: tt.errs}
			g := newGeminiClient(&GeminiConfig{Model: "m", MaxRetries: 1}, models, logger.NewTestLogger(t))

			_, err := g.Embed(context.Background(), "x")
			assert.Equal(t, tt.wantCalls, models.calls)
			if tt.wantErr {
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ==========================
// Redis cache
// ==========================

type countingProvider struct {
	calls int
	err   error
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedProvider_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	next := &countingProvider{}
	c := NewCachedProvider(next, rdb, "ada", time.Hour, logger.NewTestLogger(t))

	first, err := c.Embed(context.Background(), "customer")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "customer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "embedding:counting:"))
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))

	_, err = c.Embed(context.Background(), "another text")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedProvider_RedisDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	next := &countingProvider{}
	c := NewCachedProvider(next, rdb, "ada", time.Minute, logger.NewTestLogger(t))

	key := c.cacheKey("text")
	data, _ := json.Marshal([]float32{4, 1})
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, data, time.Minute).SetErr(errors.New("connection refused"))

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedProvider_PropagatesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewCachedProvider(&countingProvider{err: errors.New("boom")}, rdb, "ada", time.Hour, logger.NewTestLogger(t))

	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

// ==========================
// Provider selection
// ==========================

func TestNew(t *testing.T) {
	log := logger.NewTestLogger(t)

	p, err := New(context.Background(), config.EmbeddingConfig{Provider: "openai", BaseURL: "http://localhost"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, p)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	p, err = New(context.Background(), config.EmbeddingConfig{Provider: "openai", BaseURL: "http://localhost", CacheTTL: 1000}, rdb, log)
	require.NoError(t, err)
	assert.IsType(t, &CachedProvider{}, p)
	assert.Equal(t, "openai", p.Name())

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "gemini"}, nil, log)
	assert.Error(t, err)

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "cohere"}, nil, log)
	assert.Error(t, err)
}
