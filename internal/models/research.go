// internal/models/research.go
package models

import (
	"strings"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/validation"
)

type SearchQuerySet struct {
	SearchQueries []string `json:"search_queries" jsonschema:"minItems=1,maxItems=10" jsonschema_description:"A list of search queries for the product."`
}

type SearchResult struct {
	Title           string  `json:"title" jsonschema_description:"The title of the search result."`
	URL             string  `json:"url" jsonschema_description:"The url of the search result."`
	Content         string  `json:"content" jsonschema_description:"The content of the search result."`
	ConfidenceScore float64 `json:"confidence_score" jsonschema_description:"The confidence score of the search result."`
	SearchQuery     string  `json:"search_query" jsonschema_description:"The search query that was used to find the result."`
}

type SearchResultSet struct {
	SearchResults []SearchResult `json:"search_results" jsonschema:"minItems=1,maxItems=10" jsonschema_description:"A list of search results."`
}

type ProductSpec struct {
	Name  string `json:"name" jsonschema_description:"The name of the product specification."`
	Value string `json:"value" jsonschema_description:"The value of the product specification."`
}

type ScrapedProduct struct {
	PageURL         string        `json:"page_url" jsonschema_description:"The url of the product page."`
	ProductTitle    string        `json:"product_title" jsonschema_description:"The title of the product."`
	ProductPrice    string        `json:"product_price" jsonschema_description:"The price of the product."`
	OldProductPrice string        `json:"old_product_price,omitempty" jsonschema_description:"The old price of the product."`
	ProductImageURL string        `json:"product_image_url,omitempty" jsonschema_description:"The image url of the product."`
	ProductDiscount string        `json:"product_discount,omitempty" jsonschema_description:"The discount of the product."`
	ProductSpecs    []ProductSpec `json:"product_specs" jsonschema:"minItems=1,maxItems=5" jsonschema_description:"The specifications of the product. Focus on the most important features."`
	// 0 is lowest, 5 is highest
	AgentRecommendationRank   int    `json:"agent_recommendation_rank" jsonschema:"minimum=0,maximum=5" jsonschema_description:"The rank of the product based on the agent's recommendation. The higher the rank, the more recommended the product is. (0 is lowest, 5 is highest)"`
	AgentRecommendationReason string `json:"agent_recommendation_reason" jsonschema_description:"The reason for the agent's recommendation. This will be used to justify the rank of the product."`
}

type ScrapedProductSet struct {
	Products []ScrapedProduct `json:"products" jsonschema:"minItems=1,maxItems=10" jsonschema_description:"A list of html scraper results."`
}

// Report is the markdown deliverable of the last stage.
type Report struct {
	Markdown string `json:"markdown"`
}

func (r Report) Validate() error {
	if strings.TrimSpace(r.Markdown) == "" {
		return apperrors.NewSchemaValidationFailedError("Report", []string{"markdown: report is empty"})
	}
	return nil
}

// ScrapeResult is what the scrape tool hands back to the model for one page.
type ScrapeResult struct {
	URL     string      `json:"url"`
	Details interface{} `json:"details"`
}

var (
	SearchQuerySetSchema = validation.MustReflect[SearchQuerySet](
		"SearchQueries", "A json object containing the list of search queries.")
	SearchResultSetSchema = validation.MustReflect[SearchResultSet](
		"SearchResults", "A json object containing the search results.")
	ScrapedProductSchema = validation.MustReflect[ScrapedProduct](
		"HtmlScraperResult", "The details of a single product page.")
	ScrapedProductSetSchema = validation.MustReflect[ScrapedProductSet](
		"HtmlScraperResults", "A json object containing the scraped products.")
)
