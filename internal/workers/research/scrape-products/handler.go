// internal/workers/research/scrape-products/handler.go
package scrapeproducts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"product-research-workers/internal/common/camunda"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
	"product-research-workers/internal/tools"
	"product-research-workers/internal/workers/research/stage"
)

const (
	TaskType = "research-scrape-products"
)

type Handler struct {
	config  *Config
	runner  *stage.Runner
	store   stage.Store
	indexer crew.ProductIndexer
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the scrape worker. indexer may be nil.
func NewHandler(config *Config, scrape tools.Tool, deps stage.Deps, indexer crew.ProductIndexer, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		runner:  stage.NewRunner(crew.ScrapeProductsTask(scrape), deps, log),
		store:   deps.Store,
		indexer: indexer,
		errors:  apperrors.NewErrorHandler(log).WithMaxRetries(config.MaxRetries),
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job,
			apperrors.NewInvalidRunParametersError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		if stage.FinalAttempt(job, err) {
			h.runner.Fail(context.Background(), input.RunID, input.Params, err)
		}
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}

	camunda.CompleteJob(context.Background(), client, job, output, h.logger)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	input.Params = input.Params.WithDefaults(h.config.Defaults)

	prev, _, err := stage.Prior(ctx, h.store, input.RunID,
		models.StageSearchProducts, crew.SearchResultsFile, input.SearchResults)
	if err != nil {
		return nil, err
	}

	artifact, err := h.runner.Run(ctx, input.RunID, input.Params, prev)
	if err != nil {
		return nil, err
	}

	var products models.ScrapedProductSet
	if err := stage.Decode(artifact, &products); err != nil {
		return nil, err
	}

	output := &Output{
		ScrapedProducts:     products,
		ScrapedProductsPath: artifact.Path,
	}

	// indexing failures do not fail the stage
	if h.indexer != nil {
		n, err := h.indexer.IndexProducts(ctx, input.RunID, input.Params.ProductName, products.Products)
		if err != nil {
			h.logger.Warn("failed to index scraped products", map[string]interface{}{
				"runId": input.RunID,
				"error": err.Error(),
			})
		}
		output.IndexedProducts = n
	}

	h.logger.Info("product pages scraped", map[string]interface{}{
		"runId":    input.RunID,
		"products": len(products.Products),
		"indexed":  output.IndexedProducts,
	})
	return output, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
