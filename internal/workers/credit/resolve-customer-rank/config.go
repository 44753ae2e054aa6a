// internal/workers/credit/resolve-customer-rank/config.go
package resolvecustomerrank

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	SearchTimeout time.Duration
	RankIndex     string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:       30 * time.Second,
		SearchTimeout: 5 * time.Second,
		RankIndex:     "ranks",
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Evaluation.RankTimeout > 0 {
		c.SearchTimeout = config.GetDuration(cfg.Evaluation.RankTimeout)
	}
	if cfg.Search.RankIndex != "" {
		c.RankIndex = cfg.Search.RankIndex
	}
	return c
}
