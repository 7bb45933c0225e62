// Package copilot orchestrates a scenario analysis: it resolves the
// baseline, sizes the levers, simulates, ranks the strategic options and
// keeps the run registry up to date.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/deltas"
	"lrp-copilot/internal/observability"
	"lrp-copilot/internal/options"
	"lrp-copilot/internal/planner"
	"lrp-copilot/internal/runs"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrNoEngine is returned by a Service built without an engine.
var ErrNoEngine = errors.New("copilot: no simulation engine configured")

// Query is a scenario question. Explicit deltas are simulated as given;
// without them the target is allocated across levers by the planner.
type Query struct {
	simulation.Request

	Prompt      string   `json:"prompt,omitempty"`
	WorkspaceID string   `json:"workspace_id,omitempty"`
	PlatformCap *float64 `json:"platform_cap,omitempty"`
	// NoShocks disables the service's default shocks when the query sets none.
	NoShocks bool `json:"no_shocks,omitempty"`
}

// HasDeltas reports whether the query pins any lever change.
func (q Query) HasDeltas() bool {
	return q.DeltaASPUSD != 0 || q.DeltaWinRatePP != 0 || q.DeltaAttachRatePP != 0 || q.DeltaAttachPct != 0
}

// Analysis is the full answer to a Query.
type Analysis struct {
	RunID    string `json:"run_id,omitempty"`
	RunLabel string `json:"run_label,omitempty"`

	Request     simulation.Request `json:"request"`
	Plan        *planner.Plan      `json:"plan,omitempty"`
	Result      simulation.Result  `json:"result"`
	Options     []options.Option   `json:"options,omitempty"`
	Recommended *options.Option    `json:"recommended,omitempty"`

	Summary   deltas.Summary  `json:"summary"`
	Drivers   []deltas.Change `json:"drivers,omitempty"`
	Outputs   []deltas.Change `json:"outputs,omitempty"`
	Narrative string          `json:"narrative"`
}

// Service runs analyses. Registry and Metrics are optional.
type Service struct {
	Engine    *simulation.Engine
	Baselines BaselineSource
	Registry  runs.Registry
	Metrics   *observability.Metrics

	// DefaultShocks apply to queries that set no shocks.
	DefaultShocks simulation.Shocks
	// DefaultTrials applies to queries with fewer than one trial.
	DefaultTrials int
	// MaxTrials rejects queries asking for more trials; 0 means no limit.
	MaxTrials int
	// OptionParallelism bounds concurrent option simulations; 0 means unbounded.
	OptionParallelism int
}

func (s *Service) request(q Query) (simulation.Request, error) {
	req := q.Request
	if req.Trials < 1 && s.DefaultTrials > 0 {
		req.Trials = s.DefaultTrials
	}
	if s.MaxTrials > 0 && req.Trials > s.MaxTrials {
		return req, fmt.Errorf("%w: trials %d exceeds the limit of %d", storage.ErrInvalidInput, req.Trials, s.MaxTrials)
	}
	if req.Shocks == (simulation.Shocks{}) && !q.NoShocks {
		req.Shocks = s.DefaultShocks
	}
	f := req.Filter()
	req.Region, req.Segment = f.Region, f.Segment
	return req, nil
}

// Table returns the baseline for a workspace.
func (s *Service) Table(ctx context.Context, workspaceID string) (baseline.Table, error) {
	if s.Baselines == nil {
		return nil, errors.New("copilot: no baseline source configured")
	}
	return s.Baselines.Table(ctx, workspaceID)
}

// Simulate runs the engine only. Nothing is registered.
func (s *Service) Simulate(ctx context.Context, q Query) (simulation.Result, error) {
	if s.Engine == nil {
		return simulation.Result{}, ErrNoEngine
	}
	req, err := s.request(q)
	if err != nil {
		return simulation.Result{}, err
	}
	table, err := s.Table(ctx, q.WorkspaceID)
	if err != nil {
		return simulation.Result{}, err
	}
	return s.simulate(ctx, "simulate", table, req), nil
}

// Plan sizes the ASP and win-rate levers for the query's target.
func (s *Service) Plan(ctx context.Context, q Query) (planner.Plan, error) {
	req, err := s.request(q)
	if err != nil {
		return planner.Plan{}, err
	}
	table, err := s.Table(ctx, q.WorkspaceID)
	if err != nil {
		return planner.Plan{}, err
	}
	return planner.Build(table, req.Filter(), req.TargetUSD, q.PlatformCap), nil
}

func (s *Service) simulate(ctx context.Context, kind string, table baseline.Table, req simulation.Request) simulation.Result {
	start := time.Now()
	res := s.Engine.Run(ctx, table, req)
	s.Metrics.RecordSimulation(kind, res.Trials, res.ProbabilityOfHit, res.Truncated, time.Since(start))
	return res
}

// Analyze answers q end to end and records it in the registry. The run is
// registered once the baseline is resolved and the levers are sized; a later
// failure finishes it as FAILED with the error as notes.
func (s *Service) Analyze(ctx context.Context, q Query) (*Analysis, error) {
	if s.Engine == nil {
		return nil, ErrNoEngine
	}

	req, err := s.request(q)
	if err != nil {
		return nil, err
	}
	table, err := s.Table(ctx, q.WorkspaceID)
	if err != nil {
		return nil, err
	}

	a := &Analysis{}

	var plan planner.Plan
	if req.TargetUSD > 0 {
		plan = planner.Build(table, req.Filter(), req.TargetUSD, q.PlatformCap)
		if !q.HasDeltas() {
			req = plan.Request(req)
			a.Plan = &plan
		}
	}
	a.Request = req

	run := &runs.Run{
		Prompt:         q.Prompt,
		WorkspaceID:    q.WorkspaceID,
		Region:         req.Region,
		Segment:        req.Segment,
		TargetUSD:      req.TargetUSD,
		PlatformCap:    q.PlatformCap,
		DeltaASPUSD:    req.DeltaASPUSD,
		DeltaWinRatePP: req.DeltaWinRatePP,
	}
	if s.Registry != nil {
		if err := s.Registry.Start(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to start run: %w", err)
		}
		a.RunID, a.RunLabel = run.ID, run.Label
		log.Info().Str("run", run.Label).Str("region", req.Region).Str("segment", req.Segment).Float64("target", req.TargetUSD).Msg("Analysis started")
	}

	err = s.evaluate(ctx, q.Prompt, table, plan, a)
	status := runs.StatusDone
	notes := ""
	if err != nil {
		status, notes = runs.StatusFailed, err.Error()
	}
	s.finish(run, status, notes)
	s.Metrics.RecordRun(string(status), len(a.Options))

	if err != nil {
		log.Error().Err(err).Str("run", run.Label).Msg("Analysis failed")
		return nil, err
	}
	return a, nil
}

// evaluate fills the simulation, options and deltas of a.
func (s *Service) evaluate(ctx context.Context, prompt string, table baseline.Table, plan planner.Plan, a *Analysis) error {
	req := a.Request

	a.Result = s.simulate(ctx, "analyze", table, req)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	if s.Registry != nil {
		if err := s.Registry.RecordResult(ctx, a.RunID, a.Result); err != nil {
			return fmt.Errorf("failed to record result: %w", err)
		}
	}

	if req.TargetUSD > 0 {
		ranked, err := options.Evaluate(ctx, s.Engine, table, options.Candidates(req, plan), s.OptionParallelism)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("analysis interrupted: %w", err)
		}
		a.Options = ranked
		if best, ok := options.Recommend(ranked); ok {
			a.Recommended = &best
		}
	}

	snap := deltas.Apply(table, req)
	a.Summary = snap.Summary()
	a.Drivers = snap.Drivers()
	a.Outputs = snap.Outputs()
	a.Narrative = deltas.Narrative(prompt, a.Summary, a.Options)
	return nil
}

// finish uses its own context: a cancelled request still gets a terminal status.
func (s *Service) finish(run *runs.Run, status runs.Status, notes string) {
	if s.Registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Registry.Finish(ctx, run.ID, status, notes); err != nil {
		log.Warn().Err(err).Str("run", run.Label).Msg("Failed to finish run")
		return
	}
	log.Info().Str("run", run.Label).Str("status", string(status)).Msg("Analysis finished")
}

// Runs lists registered runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]*runs.Run, error) {
	if s.Registry == nil {
		return nil, errors.New("copilot: no run registry configured")
	}
	return s.Registry.List(ctx, limit)
}

// Run returns one registered run.
func (s *Service) Run(ctx context.Context, id string) (*runs.Run, error) {
	if s.Registry == nil {
		return nil, errors.New("copilot: no run registry configured")
	}
	return s.Registry.Get(ctx, id)
}
