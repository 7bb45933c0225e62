// Package runs keeps the audit trail of scenario analyses.
package runs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"lrp-copilot/internal/simulation"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Run is one row of the run registry.
type Run struct {
	ID    string `json:"id"`
	Label string `json:"label"`

	Prompt      string   `json:"prompt,omitempty"`
	WorkspaceID string   `json:"workspace_id,omitempty"`
	Region      string   `json:"region"`
	Segment     string   `json:"segment"`
	TargetUSD   float64  `json:"target_usd"`
	PlatformCap *float64 `json:"platform_cap,omitempty"`

	DeltaASPUSD    float64 `json:"delta_asp_usd"`
	DeltaWinRatePP float64 `json:"delta_win_rate_pp"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     Status     `json:"status"`

	ProbabilityOfHit *float64 `json:"prob_hit,omitempty"`
	MeanDelta        *float64 `json:"mean_delta,omitempty"`
	P10              *float64 `json:"p10,omitempty"`
	P50              *float64 `json:"p50,omitempty"`
	P90              *float64 `json:"p90,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// Registry records the lifecycle of runs.
type Registry interface {
	// Start assigns the run an ID, label and start time and stores it as RUNNING.
	Start(ctx context.Context, run *Run) error

	// RecordResult attaches the Monte Carlo summary to a run.
	RecordResult(ctx context.Context, id string, res simulation.Result) error

	// Finish closes a run with the given status and optional notes.
	Finish(ctx context.Context, id string, status Status, notes string) error

	// Get returns a run by ID. Returns storage.ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns up to limit runs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*Run, error)
}

// NewLabel formats a human-readable run label, RUN_YYYYMMDD_HHMMSS_nnn.
func NewLabel(t time.Time) string {
	return fmt.Sprintf("RUN_%s_%03d", t.Format("20060102_150405"), rand.Intn(900)+100)
}

// Begin fills the fields Start is responsible for.
func (r *Run) Begin(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Label == "" {
		r.Label = NewLabel(now)
	}
	r.StartedAt = now.UTC()
	r.Status = StatusRunning
	r.FinishedAt = nil
}

// Apply copies the Monte Carlo summary onto the run.
func (r *Run) Apply(res simulation.Result) {
	p, mean, p10, p50, p90 := res.ProbabilityOfHit, res.MeanDelta, res.P10, res.P50, res.P90
	r.ProbabilityOfHit = &p
	r.MeanDelta = &mean
	r.P10 = &p10
	r.P50 = &p50
	r.P90 = &p90
}

// Close marks the run finished. An empty status means DONE.
func (r *Run) Close(now time.Time, status Status, notes string) {
	if status == "" {
		status = StatusDone
	}
	t := now.UTC()
	r.FinishedAt = &t
	r.Status = status
	if notes != "" {
		r.Notes = notes
	}
}

// Duration is the wall time of a finished run, or zero.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
