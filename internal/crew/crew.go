package crew

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/metrics"
	"product-research-workers/internal/models"
)

// ArtifactStore persists stage outputs and returns where they were written.
type ArtifactStore interface {
	Write(ctx context.Context, runID, name string, content []byte) (string, error)
}

// RunRecorder keeps the history of research runs.
type RunRecorder interface {
	Create(ctx context.Context, run *models.ResearchRun) error
	UpdateStage(ctx context.Context, runID, stage string) error
	Finish(ctx context.Context, run *models.ResearchRun) error
}

// ProductIndexer receives the scraped products of a run.
type ProductIndexer interface {
	IndexProducts(ctx context.Context, runID, productName string, products []models.ScrapedProduct) (int, error)
}

// Notifier announces a completed run.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, n models.RunNotification, report string) error
}

// RunObserver records run-level measurements.
type RunObserver interface {
	RecordRun(ctx context.Context, product, status string, duration time.Duration)
}

// Result is what a run produced, in write order.
type Result struct {
	Run       *models.ResearchRun
	Artifacts []Artifact
}

// Crew runs its tasks strictly in order, handing each validated output to
// the next task, and stops at the first failure.
type Crew struct {
	tasks        []*Task
	executor     *Executor
	store        ArtifactStore
	recorder     RunRecorder
	indexer      ProductIndexer
	notifier     Notifier
	observer     RunObserver
	stageTimeout time.Duration
	newID        func() string
	logger       logger.Logger
}

type Option func(*Crew)

func WithRecorder(r RunRecorder) Option        { return func(c *Crew) { c.recorder = r } }
func WithIndexer(i ProductIndexer) Option      { return func(c *Crew) { c.indexer = i } }
func WithNotifier(n Notifier) Option           { return func(c *Crew) { c.notifier = n } }
func WithObserver(o RunObserver) Option        { return func(c *Crew) { c.observer = o } }
func WithStageTimeout(d time.Duration) Option  { return func(c *Crew) { c.stageTimeout = d } }
func WithIDGenerator(gen func() string) Option { return func(c *Crew) { c.newID = gen } }

func New(tasks []*Task, executor *Executor, store ArtifactStore, log logger.Logger, opts ...Option) *Crew {
	c := &Crew{
		tasks:    tasks,
		executor: executor,
		store:    store,
		newID:    uuid.NewString,
		logger:   log.With(map[string]interface{}{"component": "crew"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kickoff validates the parameters and runs every task. On failure the
// returned result still lists the artifacts written before the failing stage.
func (c *Crew) Kickoff(ctx context.Context, params models.RunParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	for _, t := range c.tasks {
		if err := t.Compile(); err != nil {
			return nil, err
		}
	}

	run := &models.ResearchRun{
		ID:          c.newID(),
		ProductName: params.ProductName,
		Params:      params,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	log := c.logger.With(map[string]interface{}{"runId": run.ID, "product": run.ProductName})
	log.Info("research run started", map[string]interface{}{"stages": len(c.tasks)})

	if c.recorder != nil {
		if err := c.recorder.Create(ctx, run); err != nil {
			log.Warn("failed to record run start", map[string]interface{}{"error": err.Error()})
		}
	}

	result := &Result{Run: run}
	var prior []Artifact
	var products []models.ScrapedProduct

	for _, task := range c.tasks {
		run.CurrentStage = task.Name
		if c.recorder != nil {
			if err := c.recorder.UpdateStage(ctx, run.ID, task.Name); err != nil {
				log.Warn("failed to record stage", map[string]interface{}{"stage": task.Name, "error": err.Error()})
			}
		}

		artifact, err := c.runStage(ctx, run.ID, task, params, prior)
		if err != nil {
			log.Error("research run failed", map[string]interface{}{"stage": task.Name, "error": err.Error()})
			c.finish(ctx, run, err)
			return result, err
		}
		result.Artifacts = append(result.Artifacts, *artifact)
		prior = []Artifact{*artifact}

		if task.Name == models.StageScrapeProducts {
			products = c.indexProducts(ctx, run, artifact, log)
		}
	}

	c.finish(ctx, run, nil)
	log.Info("research run completed", map[string]interface{}{
		"artifacts":  len(result.Artifacts),
		"durationMs": run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	})
	c.notify(ctx, result, products, log)
	return result, nil
}

func (c *Crew) runStage(ctx context.Context, runID string, task *Task, params models.RunParams, prior []Artifact) (*Artifact, error) {
	if c.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stageTimeout)
		defer cancel()
	}

	return RunStage(ctx, c.executor, c.store, runID, task, params, prior)
}

// RunStage executes a single task and writes its artifact. It is the unit of
// work shared by the local crew and the per-stage job workers.
func RunStage(ctx context.Context, executor *Executor, store ArtifactStore, runID string, task *Task, params models.RunParams, prior []Artifact) (*Artifact, error) {
	started := time.Now()
	artifact, err := executor.Execute(ctx, task, params, prior)
	if err == nil {
		artifact.Path, err = store.Write(ctx, runID, artifact.File, []byte(artifact.Content))
	}
	metrics.ObserveStage(task.Name, started, err)
	if err != nil {
		return nil, err
	}
	metrics.ArtifactsWritten.WithLabelValues(artifact.File).Inc()
	return artifact, nil
}

func (c *Crew) finish(ctx context.Context, run *models.ResearchRun, runErr error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	}

	if c.recorder != nil {
		if err := c.recorder.Finish(ctx, run); err != nil {
			c.logger.Warn("failed to record run result", map[string]interface{}{"runId": run.ID, "error": err.Error()})
		}
	}
	if c.observer != nil {
		c.observer.RecordRun(ctx, run.ProductName, string(run.Status), now.Sub(run.StartedAt))
	}
}

func (c *Crew) indexProducts(ctx context.Context, run *models.ResearchRun, artifact *Artifact, log logger.Logger) []models.ScrapedProduct {
	var set models.ScrapedProductSet
	if err := json.Unmarshal([]byte(artifact.Content), &set); err != nil {
		log.Warn("scraped products could not be decoded", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if c.indexer == nil {
		return set.Products
	}

	n, err := c.indexer.IndexProducts(ctx, run.ID, run.ProductName, set.Products)
	if err != nil {
		log.Warn("failed to index scraped products", map[string]interface{}{"error": err.Error()})
	} else {
		log.Info("scraped products indexed", map[string]interface{}{"count": n})
	}
	return set.Products
}

func (c *Crew) notify(ctx context.Context, result *Result, products []models.ScrapedProduct, log logger.Logger) {
	if c.notifier == nil {
		return
	}

	run := result.Run
	n := models.RunNotification{
		RunID:       run.ID,
		ProductName: run.ProductName,
		Status:      string(run.Status),
		Products:    len(products),
		Duration:    run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
	}
	var report string
	for _, a := range result.Artifacts {
		n.Artifacts = append(n.Artifacts, a.Path)
		if a.Task == models.StageGenerateReport {
			n.ReportPath = a.Path
			report = a.Content
		}
	}

	if err := c.notifier.NotifyRunCompleted(ctx, n, report); err != nil {
		log.Warn("failed to send run notification", map[string]interface{}{"error": err.Error()})
	}
}
