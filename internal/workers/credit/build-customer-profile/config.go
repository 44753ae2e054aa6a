// internal/workers/credit/build-customer-profile/config.go
package buildcustomerprofile

import (
	"time"

	"credit-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	QueryTimeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:      30 * time.Second,
		QueryTimeout: 3 * time.Second,
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if cfg.Evaluation.ProfileTimeout > 0 {
		c.QueryTimeout = config.GetDuration(cfg.Evaluation.ProfileTimeout)
	}
	return c
}
