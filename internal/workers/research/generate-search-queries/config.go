// internal/workers/research/generate-search-queries/config.go
package generatesearchqueries

import (
	"time"

	"product-research-workers/internal/models"
)

type Config struct {
	Timeout time.Duration
	// Defaults fill the run parameters the process did not set.
	Defaults models.RunParams
	// MaxRetries caps engine retries of a failed job.
	MaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    5 * time.Minute,
		Defaults:   models.DefaultRunParams(),
		MaxRetries: 3,
	}
}
