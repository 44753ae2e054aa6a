package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"credit-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// CachedProvider memoizes embeddings in Redis keyed by model and text.
// Cache errors never fail an embedding call.
type CachedProvider struct {
	next   Provider
	redis  *redis.Client
	model  string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(next Provider, rdb *redis.Client, model string, ttl time.Duration, log logger.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		redis:  rdb,
		model:  model,
		ttl:    ttl,
		logger: log,
	}
}

func (c *CachedProvider) Name() string { return c.next.Name() }

func (c *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "embedding:" + c.next.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var vec []float32
		if err := json.Unmarshal([]byte(val), &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed", map[string]interface{}{"error": err.Error()})
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(vec)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return vec, nil
}
