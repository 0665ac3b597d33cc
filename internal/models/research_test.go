package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "product-research-workers/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func queries(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("coffee machine site:amazon.eg %d", i)
	}
	return out
}

func specs(n int) []ProductSpec {
	out := make([]ProductSpec, n)
	for i := range out {
		out[i] = ProductSpec{Name: fmt.Sprintf("spec-%d", i), Value: "value"}
	}
	return out
}

func validProduct() ScrapedProduct {
	return ScrapedProduct{
		PageURL:                   "https://www.amazon.eg/dp/B082VXBZYX",
		ProductTitle:              "Mienta Coffee Maker",
		ProductPrice:              "1,999 EGP",
		ProductSpecs:              specs(2),
		AgentRecommendationRank:   4,
		AgentRecommendationReason: "good value",
	}
}

func validResult() SearchResult {
	return SearchResult{
		Title:           "Coffee maker",
		URL:             "https://www.jumia.com.eg/coffee-maker.html",
		Content:         "Drip coffee maker",
		ConfidenceScore: 0.82,
		SearchQuery:     "coffee machine jumia",
	}
}

func assertSchemaError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaValidationFailed), "got %v", err)
}

// ==========================
// SearchQuerySet
// ==========================

func TestSearchQuerySetSchema_Bounds(t *testing.T) {
	tests := []struct {
		name  string
		count int
		valid bool
	}{
		{"zero queries", 0, false},
		{"one query", 1, true},
		{"ten queries", 10, true},
		{"eleven queries", 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SearchQuerySetSchema.ValidateValue(SearchQuerySet{SearchQueries: queries(tt.count)})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assertSchemaError(t, err)
			}
		})
	}
}

func TestSearchQuerySetSchema_RejectsMissingField(t *testing.T) {
	assertSchemaError(t, SearchQuerySetSchema.Validate([]byte(`{}`)))
	assertSchemaError(t, SearchQuerySetSchema.Validate([]byte(`not json`)))
}

// ==========================
// SearchResultSet
// ==========================

func TestSearchResultSetSchema_Bounds(t *testing.T) {
	build := func(n int) SearchResultSet {
		set := SearchResultSet{}
		for i := 0; i < n; i++ {
			set.SearchResults = append(set.SearchResults, validResult())
		}
		return set
	}

	assertSchemaError(t, SearchResultSetSchema.ValidateValue(build(0)))
	assert.NoError(t, SearchResultSetSchema.ValidateValue(build(1)))
	assert.NoError(t, SearchResultSetSchema.ValidateValue(build(10)))
	assertSchemaError(t, SearchResultSetSchema.ValidateValue(build(11)))
}

func TestSearchResultSetSchema_RequiresEveryField(t *testing.T) {
	body := `{"search_results":[{"title":"t","url":"u","content":"c","confidence_score":0.5}]}`
	assertSchemaError(t, SearchResultSetSchema.Validate([]byte(body)))
}

// ==========================
// ScrapedProduct
// ==========================

func TestScrapedProductSchema_RecommendationRank(t *testing.T) {
	for rank := -1; rank <= 6; rank++ {
		t.Run(fmt.Sprintf("rank %d", rank), func(t *testing.T) {
			p := validProduct()
			p.AgentRecommendationRank = rank
			err := ScrapedProductSchema.ValidateValue(p)
			if rank >= 0 && rank <= 5 {
				assert.NoError(t, err)
			} else {
				assertSchemaError(t, err)
			}
		})
	}
}

func TestScrapedProductSchema_RejectsFractionalRank(t *testing.T) {
	p := validProduct()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	body := strings.Replace(string(raw), `"agent_recommendation_rank":4`, `"agent_recommendation_rank":2.5`, 1)
	assertSchemaError(t, ScrapedProductSchema.Validate([]byte(body)))
}

func TestScrapedProductSchema_Bounds(t *testing.T) {
	for _, n := range []int{0, 6} {
		p := validProduct()
		p.ProductSpecs = specs(n)
		assertSchemaError(t, ScrapedProductSchema.ValidateValue(p))
	}
	p := validProduct()
	p.ProductSpecs = specs(5)
	assert.NoError(t, ScrapedProductSchema.ValidateValue(p))
}

func TestScrapedProductSchema_OptionalFields(t *testing.T) {
	p := validProduct()
	p.OldProductPrice = "2,499 EGP"
	p.ProductDiscount = "20%"
	p.ProductImageURL = "https://m.media-amazon.com/images/I/coffee.jpg"
	assert.NoError(t, ScrapedProductSchema.ValidateValue(p))

	assert.False(t, ScrapedProductSchema.Strict())
	assert.True(t, SearchQuerySetSchema.Strict())
	assert.True(t, ExtractedEventSchema.Strict())
}

func TestScrapedProductSetSchema_Bounds(t *testing.T) {
	build := func(n int) ScrapedProductSet {
		set := ScrapedProductSet{}
		for i := 0; i < n; i++ {
			set.Products = append(set.Products, validProduct())
		}
		return set
	}

	assertSchemaError(t, ScrapedProductSetSchema.ValidateValue(build(0)))
	assert.NoError(t, ScrapedProductSetSchema.ValidateValue(build(3)))
	assertSchemaError(t, ScrapedProductSetSchema.ValidateValue(build(11)))
}

// ==========================
// ExtractedEvent / Report
// ==========================

func TestExtractedEventSchema_Decode(t *testing.T) {
	body := `{"reasoning":"a seminar on a date","name":"AI learning seminar","date":"October 20","participants":[]}`

	var ev ExtractedEvent
	require.NoError(t, ExtractedEventSchema.Decode([]byte(body), &ev))
	assert.Equal(t, "AI learning seminar", ev.Name)
	assert.Equal(t, "October 20", ev.Date)
	assert.Empty(t, ev.Participants)

	assertSchemaError(t, ExtractedEventSchema.Decode([]byte(`{"name":"x"}`), &ev))
}

func TestExtractedEventSchema_Document(t *testing.T) {
	doc := ExtractedEventSchema.Document()
	assert.NotContains(t, doc, "$schema")
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])

	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "participants")
	assert.Contains(t, props, "reasoning")
}

func TestReport_Validate(t *testing.T) {
	assert.NoError(t, Report{Markdown: "# Executive Summary"}.Validate())
	assertSchemaError(t, Report{Markdown: "  \n"}.Validate())
}
