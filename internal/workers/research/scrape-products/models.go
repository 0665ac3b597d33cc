// internal/workers/research/scrape-products/models.go
package scrapeproducts

import "product-research-workers/internal/models"

type Input struct {
	RunID         string                  `json:"runId"`
	Params        models.RunParams        `json:"params"`
	SearchResults *models.SearchResultSet `json:"searchResults,omitempty"`
}

type Output struct {
	ScrapedProducts     models.ScrapedProductSet `json:"scrapedProducts"`
	ScrapedProductsPath string                   `json:"scrapedProductsPath"`
	IndexedProducts     int                      `json:"indexedProducts"`
}
