// internal/workers/credit/evaluate-credit/config.go
package evaluatecredit

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout         time.Duration
	RecommendedTerm string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:         15 * time.Second,
		RecommendedTerm: "12 months",
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
