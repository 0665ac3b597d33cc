// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_stage_runs_total",
			Help: "Pipeline stage executions by outcome",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_stage_duration_seconds",
			Help:    "Wall time of a pipeline stage",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_tool_calls_total",
			Help: "Tool invocations requested by the model",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_tool_duration_seconds",
			Help:    "Latency of a single tool invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	ToolCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_tool_cache_lookups_total",
			Help: "Tool cache lookups by result (hit, miss, error)",
		},
		[]string{"tool", "result"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Chat completion requests by model and outcome",
		},
		[]string{"model", "status"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens consumed by kind (prompt, completion)",
		},
		[]string{"model", "kind"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of chat completion requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	ArtifactsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_artifacts_written_total",
			Help: "Stage artifacts written to the output directory",
		},
		[]string{"file"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStage records one stage execution.
func ObserveStage(stage string, started time.Time, err error) {
	StageRuns.WithLabelValues(stage, status(err)).Inc()
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// ObserveTool records one tool invocation.
func ObserveTool(tool string, started time.Time, err error) {
	ToolCalls.WithLabelValues(tool, status(err)).Inc()
	ToolDuration.WithLabelValues(tool).Observe(time.Since(started).Seconds())
}

// ObserveLLM records one chat completion.
func ObserveLLM(model string, started time.Time, promptTokens, completionTokens int64, err error) {
	LLMRequests.WithLabelValues(model, status(err)).Inc()
	LLMDuration.WithLabelValues(model).Observe(time.Since(started).Seconds())
	if promptTokens > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
