package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "credit-workers/internal/common/errors"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/metrics"
)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
// When APIVersion is set the Azure OpenAI deployment route and api-key header are used.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	APIVersion string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIClient calls the /embeddings endpoint of OpenAI or Azure OpenAI.
type OpenAIClient struct {
	config *OpenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewOpenAIClient(cfg *OpenAIConfig, log logger.Logger) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if strings.Contains(cfg.BaseURL, ".openai.azure.com") && cfg.APIVersion == "" {
		cfg.APIVersion = "2023-05-15"
	}
	return &OpenAIClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.WithFields(map[string]interface{}{"embeddingProvider": "openai"}),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) endpoint() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if c.config.APIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", base, c.config.Model, c.config.APIVersion)
	}
	return base + "/embeddings"
}

type openAIRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding of text, retrying throttled and server errors.
func (c *OpenAIClient) Embed(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternalCall("embedding", "openai", start, err) }()

	body := openAIRequest{Input: text}
	if c.config.APIVersion == "" {
		body.Model = c.config.Model
		// ada-002 rejects the dimensions parameter
		if !strings.HasSuffix(c.config.Model, "ada-002") {
			body.Dimensions = c.config.Dimensions
		}
	}
	payload, _ := json.Marshal(body)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return nil, apperrors.NewEmbeddingTimeoutError(c.Name())
			}
		}

		vec, retry, err := c.do(ctx, payload)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewEmbeddingTimeoutError(c.Name())
		}
		if !retry {
			break
		}
		c.logger.Warn("embedding request failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return nil, apperrors.NewEmbeddingFailedError(c.Name(), lastErr)
}

type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embeddings endpoint returned status %d", e.status)
}

func (c *OpenAIClient) backoff(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > 0 {
		return se.retryAfter
	}
	return retryDelay(attempt)
}

// do performs one request. retry reports whether the failure is transient.
func (c *OpenAIClient) do(ctx context.Context, payload []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIVersion != "" {
		req.Header.Set("api-key", c.config.APIKey)
	} else if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		se := &statusError{status: resp.StatusCode}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			se.retryAfter = time.Duration(secs) * time.Second
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, se
	}
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, &statusError{status: resp.StatusCode}
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, false, errors.New("no embedding returned")
	}

	vec := out.Data[0].Embedding
	if c.config.Dimensions > 0 && len(vec) != c.config.Dimensions {
		return nil, false, fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), c.config.Dimensions)
	}
	return vec, false, nil
}
