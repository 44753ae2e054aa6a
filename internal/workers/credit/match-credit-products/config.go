// internal/workers/credit/match-credit-products/config.go
package matchcreditproducts

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout            time.Duration
	SearchTimeout      time.Duration
	ProductIndex       string
	TopK               int
	RankScopedMatching bool
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:       30 * time.Second,
		SearchTimeout: 5 * time.Second,
		ProductIndex:  "products",
		TopK:          10,
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Evaluation.MatchTimeout > 0 {
		c.SearchTimeout = config.GetDuration(cfg.Evaluation.MatchTimeout)
	}
	if cfg.Evaluation.MatchTopK > 0 {
		c.TopK = cfg.Evaluation.MatchTopK
	}
	if cfg.Search.ProductIndex != "" {
		c.ProductIndex = cfg.Search.ProductIndex
	}
	c.RankScopedMatching = cfg.Evaluation.RankScopedMatching
	return c
}
