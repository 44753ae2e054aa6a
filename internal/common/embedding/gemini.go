package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini embedding backend.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiClient embeds text with the Gemini API.
type GeminiClient struct {
	config *GeminiConfig
	models contentEmbedder
	logger logger.Logger
}

func NewGeminiClient(ctx context.Context, cfg *GeminiConfig, log logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiClient(cfg, client.Models, log), nil
}

func newGeminiClient(cfg *GeminiConfig, models contentEmbedder, log logger.Logger) *GeminiClient {
	return &GeminiClient{
		config: cfg,
		models: models,
		logger: log.WithFields(map[string]interface{}{"embeddingProvider": "gemini", "model": cfg.Model}),
	}
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Embed(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall("embedding", "gemini", start, err) }()

	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if g.config.Dimensions > 0 {
		dims := int32(g.config.Dimensions)
		cfg.OutputDimensionality = &dims
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, retryDelay(attempt-1)); err != nil {
				return nil, apperrors.NewEmbeddingTimeoutError(g.Name())
			}
		}

		resp, err := g.models.EmbedContent(ctx, g.config.Model, genai.Text(text), cfg)
		if err == nil {
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
				return nil, apperrors.NewEmbeddingFailedError(g.Name(), errors.New("no embedding returned"))
			}
			return resp.Embeddings[0].Values, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, apperrors.NewEmbeddingTimeoutError(g.Name())
		}
		if !isTransient(err) {
			break
		}
		g.logger.Warn("gemini embedding failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return nil, apperrors.NewEmbeddingFailedError(g.Name(), lastErr)
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Code >= 500
	}
	return true
}
