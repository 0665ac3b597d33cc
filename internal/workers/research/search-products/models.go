// internal/workers/research/search-products/models.go
package searchproducts

import "product-research-workers/internal/models"

type Input struct {
	RunID  string           `json:"runId"`
	Params models.RunParams `json:"params"`
	// SearchQueries is read back from the artifact store when absent.
	SearchQueries *models.SearchQuerySet `json:"searchQueries,omitempty"`
}

type Output struct {
	SearchResults     models.SearchResultSet `json:"searchResults"`
	SearchResultsPath string                 `json:"searchResultsPath"`
}
