// internal/workers/catalog/index-rank-catalog/config.go
package indexrankcatalog

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	RankIndex    string
	Dimensions   int
	MaxBatchSize int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:      60 * time.Second,
		RankIndex:    "ranks",
		Dimensions:   1536,
		MaxBatchSize: 50,
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Search.RankIndex != "" {
		c.RankIndex = cfg.Search.RankIndex
	}
	if cfg.AI.Embedding.Dimensions > 0 {
		c.Dimensions = cfg.AI.Embedding.Dimensions
	}
	return c
}
