// cmd/tools/registry-updater/catalog.go
package main

import (
	"fmt"
	"sort"
	"time"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/validation"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
	ee "product-research-workers/internal/workers/extraction/extract-event"
	gr "product-research-workers/internal/workers/research/generate-report"
	gsq "product-research-workers/internal/workers/research/generate-search-queries"
	scp "product-research-workers/internal/workers/research/scrape-products"
	srp "product-research-workers/internal/workers/research/search-products"
	"product-research-workers/pkg/registry"
)

const (
	researchProcess = "product-market-research"
	defaultRetries  = 3
)

// stageErrors are the codes every research stage can end with.
var stageErrors = []apperrors.ErrorCode{
	apperrors.ErrCodeInvalidRunParameters,
	apperrors.ErrCodeTemplateRenderFailed,
	apperrors.ErrCodeLLMRequestFailed,
	apperrors.ErrCodeLLMTimeout,
	apperrors.ErrCodeSchemaValidationFailed,
	apperrors.ErrCodeArtifactWriteFailed,
}

// Catalog builds the registry entries of every worker in this repository from
// the workers' own types, task types and timeouts.
func Catalog() ([]registry.Activity, error) {
	type entry struct {
		activity registry.Activity
		input    func() (*validation.Schema, error)
		output   func() (*validation.Schema, error)
		codes    []apperrors.ErrorCode
	}

	toolStage := append([]apperrors.ErrorCode{
		apperrors.ErrCodeToolInvocationFailed,
		apperrors.ErrCodeToolIterationsExceeded,
		apperrors.ErrCodeArtifactNotFound,
	}, stageErrors...)

	entries := []entry{
		{
			activity: registry.Activity{
				ID:          models.StageGenerateSearchQueries,
				DisplayName: "Generate Search Queries",
				Description: "Writes the search queries a shopper would use to find the product",
				Category:    "research",
				TaskType:    gsq.TaskType,
				Timeout:     gsq.LoadConfig().Timeout.String(),
				OutputFile:  crew.SearchQueriesFile,
				Workflows:   []string{researchProcess},
				Tags:        []string{"llm", "structured-output"},
			},
			input:  func() (*validation.Schema, error) { return validation.Reflect[gsq.Input]("input", "") },
			output: func() (*validation.Schema, error) { return validation.Reflect[gsq.Output]("output", "") },
			codes:  stageErrors,
		},
		{
			activity: registry.Activity{
				ID:          models.StageSearchProducts,
				DisplayName: "Search Products",
				Description: "Runs the search queries and keeps the product pages worth scraping",
				Category:    "research",
				TaskType:    srp.TaskType,
				Timeout:     srp.LoadConfig().Timeout.String(),
				OutputFile:  crew.SearchResultsFile,
				Workflows:   []string{researchProcess},
				Tags:        []string{"llm", "tool:search"},
			},
			input:  func() (*validation.Schema, error) { return validation.Reflect[srp.Input]("input", "") },
			output: func() (*validation.Schema, error) { return validation.Reflect[srp.Output]("output", "") },
			codes:  toolStage,
		},
		{
			activity: registry.Activity{
				ID:          models.StageScrapeProducts,
				DisplayName: "Scrape Products",
				Description: "Scrapes the product pages and ranks the offers",
				Category:    "research",
				TaskType:    scp.TaskType,
				Timeout:     scp.LoadConfig().Timeout.String(),
				OutputFile:  crew.ScraperResultsFile,
				Workflows:   []string{researchProcess},
				Tags:        []string{"llm", "tool:scrape", "elasticsearch"},
			},
			input:  func() (*validation.Schema, error) { return validation.Reflect[scp.Input]("input", "") },
			output: func() (*validation.Schema, error) { return validation.Reflect[scp.Output]("output", "") },
			codes:  toolStage,
		},
		{
			activity: registry.Activity{
				ID:          models.StageGenerateReport,
				DisplayName: "Generate Report",
				Description: "Writes the markdown procurement report and closes the run",
				Category:    "research",
				TaskType:    gr.TaskType,
				Timeout:     gr.LoadConfig().Timeout.String(),
				OutputFile:  crew.ReportFile,
				Workflows:   []string{researchProcess},
				Tags:        []string{"llm", "markdown", "notification"},
			},
			input:  func() (*validation.Schema, error) { return validation.Reflect[gr.Input]("input", "") },
			output: func() (*validation.Schema, error) { return validation.Reflect[gr.Output]("output", "") },
			codes:  append([]apperrors.ErrorCode{apperrors.ErrCodeArtifactNotFound}, stageErrors...),
		},
		{
			activity: registry.Activity{
				ID:          ee.TaskType,
				DisplayName: "Extract Event",
				Description: "Extracts a calendar event from one sentence",
				Category:    "extraction",
				TaskType:    ee.TaskType,
				Timeout:     ee.LoadConfig().Timeout.String(),
				Workflows:   []string{},
				Tags:        []string{"llm", "structured-output"},
			},
			input:  func() (*validation.Schema, error) { return validation.Reflect[ee.Input]("input", "") },
			output: func() (*validation.Schema, error) { return validation.Reflect[ee.Output]("output", "") },
			codes: []apperrors.ErrorCode{
				apperrors.ErrCodeInvalidRunParameters,
				apperrors.ErrCodeLLMRequestFailed,
				apperrors.ErrCodeLLMTimeout,
				apperrors.ErrCodeSchemaValidationFailed,
			},
		},
	}

	activities := make([]registry.Activity, 0, len(entries))
	for _, e := range entries {
		in, err := e.input()
		if err != nil {
			return nil, fmt.Errorf("%s input schema: %w", e.activity.ID, err)
		}
		out, err := e.output()
		if err != nil {
			return nil, fmt.Errorf("%s output schema: %w", e.activity.ID, err)
		}

		a := e.activity
		a.Version = "1.0.0"
		a.ImplementationStatus = "completed"
		a.InputSchema = in.Document()
		a.OutputSchema = out.Document()
		a.ErrorCodes = bpmnCodes(e.codes)
		a.Retries = defaultRetries
		activities = append(activities, a)
	}
	return activities, nil
}

// bpmnCodes lists the distinct BPMN error codes the given codes are thrown as.
func bpmnCodes(codes []apperrors.ErrorCode) []string {
	seen := map[string]bool{}
	var out []string
	for _, code := range codes {
		bpmn := apperrors.ConvertToBPMNError(&apperrors.StandardError{Code: code, Timestamp: time.Now()}).Code
		if !seen[bpmn] {
			seen[bpmn] = true
			out = append(out, bpmn)
		}
	}
	sort.Strings(out)
	return out
}
