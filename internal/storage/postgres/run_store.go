package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lrp-copilot/internal/runs"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage"
)

// RunStore implements runs.Registry on the lrp_runs table.
type RunStore struct {
	pool *Pool
	now  func() time.Time
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool, now: time.Now}
}

var _ runs.Registry = (*RunStore)(nil)

const runColumns = `
	run_id, label, prompt, workspace_id, region, segment, target_usd, platform_cap,
	delta_asp_usd, delta_win_rate_pp, started_at, finished_at, status,
	prob_hit, mean_delta, p10, p50, p90, notes
`

// Start inserts the run as RUNNING. Returns ErrDuplicateKey if the ID exists.
func (s *RunStore) Start(ctx context.Context, run *runs.Run) error {
	run.Begin(s.now())

	query := `
		INSERT INTO lrp_runs (
			run_id, label, prompt, workspace_id, region, segment, target_usd, platform_cap,
			delta_asp_usd, delta_win_rate_pp, started_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		run.ID,
		run.Label,
		run.Prompt,
		run.WorkspaceID,
		run.Region,
		run.Segment,
		run.TargetUSD,
		run.PlatformCap,
		run.DeltaASPUSD,
		run.DeltaWinRatePP,
		run.StartedAt,
		string(run.Status),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordResult stores the Monte Carlo summary on the run.
func (s *RunStore) RecordResult(ctx context.Context, id string, res simulation.Result) error {
	query := `
		UPDATE lrp_runs
		SET prob_hit = $2, mean_delta = $3, p10 = $4, p50 = $5, p90 = $6
		WHERE run_id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, res.ProbabilityOfHit, res.MeanDelta, res.P10, res.P50, res.P90)
	if err != nil {
		return fmt.Errorf("record run result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Finish closes the run. Notes are only overwritten when non-empty.
func (s *RunStore) Finish(ctx context.Context, id string, status runs.Status, notes string) error {
	if status == "" {
		status = runs.StatusDone
	}
	query := `
		UPDATE lrp_runs
		SET finished_at = $2, status = $3, notes = CASE WHEN $4 = '' THEN notes ELSE $4 END
		WHERE run_id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, s.now().UTC(), string(status), notes)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) Get(ctx context.Context, id string) (*runs.Run, error) {
	query := `SELECT ` + runColumns + ` FROM lrp_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *RunStore) List(ctx context.Context, limit int) ([]*runs.Run, error) {
	query := `SELECT ` + runColumns + ` FROM lrp_runs ORDER BY started_at DESC, run_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*runs.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// scanRun scans a single row into a Run.
func scanRun(row pgx.Row) (*runs.Run, error) {
	var r runs.Run
	var status string

	err := row.Scan(
		&r.ID,
		&r.Label,
		&r.Prompt,
		&r.WorkspaceID,
		&r.Region,
		&r.Segment,
		&r.TargetUSD,
		&r.PlatformCap,
		&r.DeltaASPUSD,
		&r.DeltaWinRatePP,
		&r.StartedAt,
		&r.FinishedAt,
		&status,
		&r.ProbabilityOfHit,
		&r.MeanDelta,
		&r.P10,
		&r.P50,
		&r.P90,
		&r.Notes,
	)
	if err != nil {
		return nil, err
	}

	r.Status = runs.Status(status)
	return &r, nil
}
