// internal/workers/research/generate-search-queries/handler.go
package generatesearchqueries

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"product-research-workers/internal/common/camunda"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
	"product-research-workers/internal/workers/research/stage"
)

const (
	TaskType = "research-generate-search-queries"
)

type Handler struct {
	config *Config
	runner *stage.Runner
	errors *apperrors.ErrorHandler
	newID  func() string
	logger logger.Logger
}

func NewHandler(config *Config, deps stage.Deps, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		runner: stage.NewRunner(crew.SearchQueriesTask(), deps, log),
		errors: apperrors.NewErrorHandler(log).WithMaxRetries(config.MaxRetries),
		newID:  uuid.NewString,
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

	if input.RunID == "" {
		input.RunID = instanceRunID(job)
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

// instanceRunID names the run after its process instance, so a retried job
// keeps the run it started.
func instanceRunID(job entities.Job) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("zeebe-process-instance:"+strconv.FormatInt(job.ProcessInstanceKey, 10))).String()
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	input.Params = input.Params.WithDefaults(h.config.Defaults)
	if err := input.Params.Validate(); err != nil {
		return nil, err
	}
	if input.RunID == "" {
		input.RunID = h.newID()
	}

	started := time.Now().UTC()
	h.runner.Begin(ctx, input.RunID, input.Params)

	artifact, err := h.runner.Run(ctx, input.RunID, input.Params, nil)
	if err != nil {
		return nil, err
	}

	var queries models.SearchQuerySet
	if err := stage.Decode(artifact, &queries); err != nil {
		return nil, err
	}

	h.logger.Info("search queries generated", map[string]interface{}{
		"runId":   input.RunID,
		"queries": len(queries.SearchQueries),
	})

	return &Output{
		RunID:             input.RunID,
		Params:            input.Params,
		StartedAt:         started,
		SearchQueries:     queries,
		SearchQueriesPath: artifact.Path,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
