// internal/workers/research/generate-search-queries/models.go
package generatesearchqueries

import (
	"time"

	"product-research-workers/internal/models"
)

type Input struct {
	// RunID is generated when the process does not supply one.
	RunID  string           `json:"runId,omitempty"`
	Params models.RunParams `json:"params"`
}

type Output struct {
	RunID             string                `json:"runId"`
	Params            models.RunParams      `json:"params"`
	StartedAt         time.Time             `json:"startedAt"`
	SearchQueries     models.SearchQuerySet `json:"searchQueries"`
	SearchQueriesPath string                `json:"searchQueriesPath"`
}
