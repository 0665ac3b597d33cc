// Package stage holds what the four research job workers share: running one
// crew task for a run and keeping the run history in step.
package stage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"

	"product-research-workers/internal/artifacts"
	"product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/crew"
	"product-research-workers/internal/models"
)

// Store is where stage artifacts are written and where a stage finds the
// previous one when it was not carried in the job variables.
type Store interface {
	Write(ctx context.Context, runID, name string, content []byte) (string, error)
	Read(ctx context.Context, runID, name string) ([]byte, error)
}

type Deps struct {
	Executor *crew.Executor
	Store    Store
	// Recorder is optional.
	Recorder crew.RunRecorder
}

type Runner struct {
	task     *crew.Task
	executor *crew.Executor
	store    Store
	recorder crew.RunRecorder
	logger   logger.Logger
}

func NewRunner(task *crew.Task, deps Deps, log logger.Logger) *Runner {
	return &Runner{
		task:     task,
		executor: deps.Executor,
		store:    deps.Store,
		recorder: deps.Recorder,
		logger:   log.With(map[string]interface{}{"stage": task.Name}),
	}
}

func (r *Runner) Task() *crew.Task {
	return r.task
}

// Begin records a new run. Only the first stage calls it.
func (r *Runner) Begin(ctx context.Context, runID string, params models.RunParams) {
	if r.recorder == nil {
		return
	}
	run := &models.ResearchRun{
		ID:           runID,
		ProductName:  params.ProductName,
		Params:       params,
		Status:       models.RunStatusRunning,
		CurrentStage: r.task.Name,
		StartedAt:    time.Now().UTC(),
	}
	if err := r.recorder.Create(ctx, run); err != nil {
		r.logger.Warn("failed to record run start", map[string]interface{}{"runId": runID, "error": err.Error()})
	}
}

// Run executes the stage for runID with prev as its context and writes the
// artifact.
func (r *Runner) Run(ctx context.Context, runID string, params models.RunParams, prev *crew.Artifact) (*crew.Artifact, error) {
	if err := artifacts.ValidateRunID(runID); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := r.task.Compile(); err != nil {
		return nil, err
	}

	if r.recorder != nil {
		if err := r.recorder.UpdateStage(ctx, runID, r.task.Name); err != nil {
			r.logger.Warn("failed to record stage", map[string]interface{}{"runId": runID, "error": err.Error()})
		}
	}

	var prior []crew.Artifact
	if prev != nil {
		prior = []crew.Artifact{*prev}
	}
	artifact, err := crew.RunStage(ctx, r.executor, r.store, runID, r.task, params, prior)
	if err != nil {
		return nil, err
	}

	r.logger.Info("stage artifact written", map[string]interface{}{"runId": runID, "path": artifact.Path})
	return artifact, nil
}

// Complete marks the run as completed. Only the last stage calls it.
func (r *Runner) Complete(ctx context.Context, runID string, params models.RunParams) {
	r.finish(ctx, runID, params, nil)
}

// Fail marks the run as failed at this stage.
func (r *Runner) Fail(ctx context.Context, runID string, params models.RunParams, err error) {
	if runID == "" {
		return
	}
	r.finish(ctx, runID, params, err)
}

// FinalAttempt reports whether err ends the run: the error handler will throw
// it as a BPMN error instead of handing the job back for a retry.
func FinalAttempt(job entities.Job, err error) bool {
	bpmnErr := errors.ConvertToBPMNError(errors.Normalize(err))
	return bpmnErr.Retries == 0 || job.Retries <= 1
}

func (r *Runner) finish(ctx context.Context, runID string, params models.RunParams, runErr error) {
	if r.recorder == nil {
		return
	}
	now := time.Now().UTC()
	run := &models.ResearchRun{
		ID:           runID,
		ProductName:  params.ProductName,
		Params:       params,
		Status:       models.RunStatusCompleted,
		CurrentStage: r.task.Name,
		FinishedAt:   &now,
	}
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := r.recorder.Finish(ctx, run); err != nil {
		r.logger.Warn("failed to record run result", map[string]interface{}{"runId": runID, "error": err.Error()})
	}
}

// Prior builds the context artifact a stage hands to the next one. The value
// carried in the job variables wins; without it the artifact is read back
// from the store.
func Prior[T any](ctx context.Context, store Store, runID, task, file string, carried *T) (*crew.Artifact, *T, error) {
	if err := artifacts.ValidateRunID(runID); err != nil {
		return nil, nil, err
	}
	if carried != nil {
		content, err := json.MarshalIndent(carried, "", "  ")
		if err != nil {
			return nil, nil, errors.NewSchemaDecodeFailedError(file, err)
		}
		return &crew.Artifact{Task: task, File: file, Content: string(content)}, carried, nil
	}

	content, err := store.Read(ctx, runID, file)
	if err != nil {
		return nil, nil, err
	}
	var value T
	if err := json.Unmarshal(content, &value); err != nil {
		return nil, nil, errors.NewSchemaDecodeFailedError(file, err)
	}
	return &crew.Artifact{Task: task, File: file, Content: string(content)}, &value, nil
}

// Decode reads a JSON artifact into dst.
func Decode(artifact *crew.Artifact, dst interface{}) error {
	if err := json.Unmarshal([]byte(artifact.Content), dst); err != nil {
		return errors.NewSchemaDecodeFailedError(artifact.File, err)
	}
	return nil
}
