// internal/workers/research/search-products/handler.go
package searchproducts

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
	TaskType = "research-search-products"
)

type Handler struct {
	config *Config
	runner *stage.Runner
	store  stage.Store
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, search tools.Tool, deps stage.Deps, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		runner: stage.NewRunner(crew.SearchProductsTask(search), deps, log),
		store:  deps.Store,
		errors: apperrors.NewErrorHandler(log).WithMaxRetries(config.MaxRetries),
		logger: log,
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
		models.StageGenerateSearchQueries, crew.SearchQueriesFile, input.SearchQueries)
	if err != nil {
		return nil, err
	}

	artifact, err := h.runner.Run(ctx, input.RunID, input.Params, prev)
	if err != nil {
		return nil, err
	}

	var results models.SearchResultSet
	if err := stage.Decode(artifact, &results); err != nil {
		return nil, err
	}

	h.logger.Info("product pages found", map[string]interface{}{
		"runId":   input.RunID,
		"results": len(results.SearchResults),
	})

	return &Output{
		SearchResults:     results,
		SearchResultsPath: artifact.Path,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
