// internal/repository/runs/runs.go
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/models"
)

var (
	ErrRunNotFound  = errors.New("research run not found")
	ErrDuplicateRun = errors.New("research run already exists")
)

// unique_violation
const pqUniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS research_runs (
	id            TEXT PRIMARY KEY,
	product_name  TEXT NOT NULL,
	params        JSONB NOT NULL,
	status        TEXT NOT NULL,
	current_stage TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS research_runs_started_at_idx ON research_runs (started_at DESC);`

const selectColumns = `id, product_name, params, status, current_stage, error, started_at, finished_at`

// Repository stores research run history in PostgreSQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewQueryExecutionFailedError("research_runs_schema", err)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, run *models.ResearchRun) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO research_runs (id, product_name, params, status, current_stage, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.ProductName, params, string(run.Status), run.CurrentStage, run.StartedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return apperrors.NewQueryExecutionFailedError("research_runs_insert", err)
	}
	return nil
}

func (r *Repository) UpdateStage(ctx context.Context, runID, stage string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE research_runs SET current_stage = $2 WHERE id = $1`, runID, stage)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("research_runs_update_stage", err)
	}
	return expectOneRow(res, runID)
}

func (r *Repository) Finish(ctx context.Context, run *models.ResearchRun) error {
	finishedAt := time.Now().UTC()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE research_runs
		SET status = $2, current_stage = $3, error = $4, finished_at = $5
		WHERE id = $1`,
		run.ID, string(run.Status), run.CurrentStage, run.Error, finishedAt)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("research_runs_finish", err)
	}
	return expectOneRow(res, run.ID)
}

func (r *Repository) Get(ctx context.Context, runID string) (*models.ResearchRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM research_runs WHERE id = $1`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("research_runs_get", err)
	}
	return run, nil
}

// ListRecent returns the latest runs, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*models.ResearchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM research_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("research_runs_list", err)
	}
	defer rows.Close()

	var out []*models.ResearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("research_runs_list", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("research_runs_list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.ResearchRun, error) {
	var (
		run        models.ResearchRun
		params     []byte
		status     string
		finishedAt sql.NullTime
	)
	if err := s.Scan(&run.ID, &run.ProductName, &params, &status, &run.CurrentStage, &run.Error, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &run.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func expectOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
