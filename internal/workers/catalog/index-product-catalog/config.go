// internal/workers/catalog/index-product-catalog/config.go
package indexproductcatalog

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	ProductIndex string
	Dimensions   int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:      120 * time.Second,
		ProductIndex: "products",
		Dimensions:   1536,
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Search.ProductIndex != "" {
		c.ProductIndex = cfg.Search.ProductIndex
	}
	if cfg.AI.Embedding.Dimensions > 0 {
		c.Dimensions = cfg.AI.Embedding.Dimensions
	}
	return c
}
