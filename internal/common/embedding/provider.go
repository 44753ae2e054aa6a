// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"fmt"
	"time"

	"credit-workers/internal/common/config"
	"credit-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Provider wraps a text-embedding model.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the provider selected by cfg.Provider. When rdb is not nil and
// cfg.CacheTTL is positive the provider is wrapped in a Redis cache.
func New(ctx context.Context, cfg config.EmbeddingConfig, rdb *redis.Client, log logger.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch cfg.Provider {
	case "openai", "":
		p = NewOpenAIClient(&OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    config.GetDuration(cfg.Timeout),
			MaxRetries: cfg.MaxRetries,
		}, log)
	case "gemini":
		p, err = NewGeminiClient(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	if rdb != nil && cfg.CacheTTL > 0 {
		p = NewCachedProvider(p, rdb, cfg.Model, config.GetDuration(cfg.CacheTTL), log)
	}
	return p, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
