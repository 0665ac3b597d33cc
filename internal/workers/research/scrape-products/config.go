// internal/workers/research/scrape-products/config.go
package scrapeproducts

import (
	"time"

	"product-research-workers/internal/models"
)

type Config struct {
	Timeout  time.Duration
	Defaults models.RunParams
	// MaxRetries caps engine retries of a failed job.
	MaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    15 * time.Minute,
		Defaults:   models.DefaultRunParams(),
		MaxRetries: 3,
	}
}
