// internal/models/params.go
package models

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "product-research-workers/internal/common/errors"
)

const MaxSearchQueries = 10

// RunParams are the kickoff inputs of a research run. The JSON names double as
// template placeholder names.
type RunParams struct {
	ProductName     string   `json:"product_name"`
	WebsitesList    []string `json:"websites_list"`
	DeliveryCountry string   `json:"delivery_country"`
	NumberOfQueries int      `json:"number_of_queries"`
	Language        string   `json:"language"`
	ConfidenceScore int      `json:"confidence_score"`
}

// DefaultRunParams mirrors the reference run: coffee machines delivered to Egypt.
func DefaultRunParams() RunParams {
	return RunParams{
		ProductName:     "coffee machine",
		WebsitesList:    []string{"https://www.amazon.eg", "https://www.jumia.com.eg", "https://noon.com/egypt-en"},
		DeliveryCountry: "Egypt",
		NumberOfQueries: 10,
		Language:        "English",
		ConfidenceScore: 70,
	}
}

func (p RunParams) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ProductName) == "" {
		problems = append(problems, "product_name is required")
	}
	if len(p.WebsitesList) == 0 {
		problems = append(problems, "websites_list needs at least one website")
	}
	for i, w := range p.WebsitesList {
		if strings.TrimSpace(w) == "" {
			problems = append(problems, fmt.Sprintf("websites_list[%d] is empty", i))
		}
	}
	if strings.TrimSpace(p.DeliveryCountry) == "" {
		problems = append(problems, "delivery_country is required")
	}
	if p.NumberOfQueries < 1 || p.NumberOfQueries > MaxSearchQueries {
		problems = append(problems, fmt.Sprintf("number_of_queries must be between 1 and %d", MaxSearchQueries))
	}
	if strings.TrimSpace(p.Language) == "" {
		problems = append(problems, "language is required")
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 100 {
		problems = append(problems, "confidence_score must be between 0 and 100")
	}
	if len(problems) > 0 {
		return apperrors.NewInvalidRunParametersError(strings.Join(problems, "; "))
	}
	return nil
}

// Placeholders renders every parameter as the single string a task template
// substitutes for it.
func (p RunParams) Placeholders() map[string]string {
	return map[string]string{
		"product_name":      p.ProductName,
		"websites_list":     strings.Join(p.WebsitesList, ", "),
		"delivery_country":  p.DeliveryCountry,
		"number_of_queries": strconv.Itoa(p.NumberOfQueries),
		"language":          p.Language,
		"confidence_score":  strconv.Itoa(p.ConfidenceScore),
	}
}

// WithDefaults fills every zero-valued field from defaults. Job variables
// usually carry only the product name.
func (p RunParams) WithDefaults(defaults RunParams) RunParams {
	if strings.TrimSpace(p.ProductName) == "" {
		p.ProductName = defaults.ProductName
	}
	if len(p.WebsitesList) == 0 {
		p.WebsitesList = append([]string(nil), defaults.WebsitesList...)
	}
	if strings.TrimSpace(p.DeliveryCountry) == "" {
		p.DeliveryCountry = defaults.DeliveryCountry
	}
	if p.NumberOfQueries == 0 {
		p.NumberOfQueries = defaults.NumberOfQueries
	}
	if strings.TrimSpace(p.Language) == "" {
		p.Language = defaults.Language
	}
	if p.ConfidenceScore == 0 {
		p.ConfidenceScore = defaults.ConfidenceScore
	}
	return p
}
