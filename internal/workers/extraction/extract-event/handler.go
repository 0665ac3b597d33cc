// internal/workers/extraction/extract-event/handler.go
package extractevent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"product-research-workers/internal/common/camunda"
	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/llm"
	"product-research-workers/internal/models"
)

const (
	TaskType = "extract-event"
)

// Handler turns one sentence into a calendar event with a single
// structured-output completion. Nothing is retried locally.
type Handler struct {
	config *Config
	client llm.Client
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, client llm.Client, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: client,
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
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}

	camunda.CompleteJob(context.Background(), client, job, output, h.logger)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return nil, apperrors.NewInvalidRunParametersError("text is required")
	}

	req := &llm.Request{
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		Messages: []llm.Message{
			llm.SystemMessage(h.config.SystemPrompt),
			llm.UserMessage(input.Text),
		},
		Schema: models.ExtractedEventSchema,
	}

	var event models.ExtractedEvent
	resp, err := llm.ParseInto(ctx, h.client, req, &event)
	if err != nil {
		return nil, err
	}

	h.logger.Info("event extracted", map[string]interface{}{
		"name":         event.Name,
		"date":         event.Date,
		"participants": len(event.Participants),
	})

	return &Output{Event: event, Model: resp.Model}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
