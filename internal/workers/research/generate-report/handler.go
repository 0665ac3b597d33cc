// internal/workers/research/generate-report/handler.go
package generatereport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"product-research-workers/internal/common/camunda"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
	"product-research-workers/internal/workers/research/stage"
)

const (
	TaskType = "research-generate-report"
)

type Handler struct {
	config   *Config
	runner   *stage.Runner
	store    stage.Store
	notifier crew.Notifier
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler builds the report worker. notifier may be nil.
func NewHandler(config *Config, deps stage.Deps, notifier crew.Notifier, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		runner:   stage.NewRunner(crew.ReportTask(), deps, log),
		store:    deps.Store,
		notifier: notifier,
		errors:   apperrors.NewErrorHandler(log).WithMaxRetries(config.MaxRetries),
		logger:   log,
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

	prev, products, err := stage.Prior(ctx, h.store, input.RunID,
		models.StageScrapeProducts, crew.ScraperResultsFile, input.ScrapedProducts)
	if err != nil {
		return nil, err
	}

	artifact, err := h.runner.Run(ctx, input.RunID, input.Params, prev)
	if err != nil {
		return nil, err
	}
	h.runner.Complete(ctx, input.RunID, input.Params)

	h.logger.Info("research report written", map[string]interface{}{
		"runId":   input.RunID,
		"path":    artifact.Path,
		"runes":   len([]rune(artifact.Content)),
		"product": input.Params.ProductName,
	})

	h.notify(ctx, input, artifact, len(products.Products))

	return &Output{
		Report:     artifact.Content,
		ReportPath: artifact.Path,
		Status:     models.RunStatusCompleted,
	}, nil
}

func (h *Handler) notify(ctx context.Context, input *Input, report *crew.Artifact, products int) {
	if h.notifier == nil {
		return
	}

	n := models.RunNotification{
		RunID:       input.RunID,
		ProductName: input.Params.ProductName,
		Status:      string(models.RunStatusCompleted),
		ReportPath:  report.Path,
		Products:    products,
	}
	for _, path := range []string{input.SearchQueriesPath, input.SearchResultsPath, input.ScrapedProductsPath, report.Path} {
		if path != "" {
			n.Artifacts = append(n.Artifacts, path)
		}
	}
	if input.StartedAt != nil {
		n.Duration = time.Since(*input.StartedAt).Round(time.Second).String()
	}

	if err := h.notifier.NotifyRunCompleted(ctx, n, report.Content); err != nil {
		h.logger.Warn("failed to send run notification", map[string]interface{}{
			"runId": input.RunID,
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
