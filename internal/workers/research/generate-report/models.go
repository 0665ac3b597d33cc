// internal/workers/research/generate-report/models.go
package generatereport

import (
	"time"

	"product-research-workers/internal/models"
)

type Input struct {
	RunID           string                    `json:"runId"`
	Params          models.RunParams          `json:"params"`
	StartedAt       *time.Time                `json:"startedAt,omitempty"`
	ScrapedProducts *models.ScrapedProductSet `json:"scrapedProducts,omitempty"`

	// Paths of the earlier artifacts, listed in the completion notification.
	SearchQueriesPath   string `json:"searchQueriesPath,omitempty"`
	SearchResultsPath   string `json:"searchResultsPath,omitempty"`
	ScrapedProductsPath string `json:"scrapedProductsPath,omitempty"`
}

type Output struct {
	Report     string           `json:"report"`
	ReportPath string           `json:"reportPath"`
	Status     models.RunStatus `json:"status"`
}
