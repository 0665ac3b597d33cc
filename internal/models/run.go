// internal/models/run.go
package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Stage names, in execution order.
const (
	StageGenerateSearchQueries = "generate-search-queries"
	StageSearchProducts        = "search-products"
	StageScrapeProducts        = "scrape-products"
	StageGenerateReport        = "generate-report"
)

// Stages lists the pipeline stages in the order they run.
var Stages = []string{
	StageGenerateSearchQueries,
	StageSearchProducts,
	StageScrapeProducts,
	StageGenerateReport,
}

// ResearchRun is the persisted history record of one pipeline run.
type ResearchRun struct {
	ID           string     `json:"id" db:"id"`
	ProductName  string     `json:"productName" db:"product_name"`
	Params       RunParams  `json:"params" db:"params"`
	Status       RunStatus  `json:"status" db:"status"`
	CurrentStage string     `json:"currentStage,omitempty" db:"current_stage"`
	Error        string     `json:"error,omitempty" db:"error"`
	StartedAt    time.Time  `json:"startedAt" db:"started_at"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
}

// IsFinished reports whether the run reached a terminal status.
func (r *ResearchRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
