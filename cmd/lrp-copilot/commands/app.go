package commands

import (
	"context"
	"fmt"

	"lrp-copilot/internal/copilot"
	"lrp-copilot/internal/observability"
	"lrp-copilot/internal/runs"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage/postgres"

	"github.com/rs/zerolog/log"
)

// app holds the wired service and the resources it owns.
type app struct {
	svc  *copilot.Service
	pool *postgres.Pool
}

// newApp wires the service from cfg. With DATABASE_URL set, runs and
// baselines live in Postgres and BASELINE_PATH is the fallback baseline;
// otherwise runs go to the JSONL registry under RunsDir.
func newApp(ctx context.Context) (*app, error) {
	engine := simulation.NewEngine()
	if cfg.Simulation.Seed != 0 {
		engine.SetSeed(cfg.Simulation.Seed)
	}
	engine.SetWorkers(cfg.Simulation.Workers)

	a := &app{svc: &copilot.Service{
		Engine:            engine,
		Metrics:           observability.NewMetrics(cfg.MetricsNamespace, nil),
		DefaultShocks:     cfg.Simulation.Shocks,
		DefaultTrials:     cfg.Simulation.Trials,
		MaxTrials:         cfg.Simulation.MaxTrials,
		OptionParallelism: cfg.Simulation.OptionParallelism,
	}}

	var files copilot.BaselineSource
	if cfg.BaselinePath != "" {
		files = &copilot.FileBaselines{Path: cfg.BaselinePath}
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.pool = pool
		a.svc.Registry = postgres.NewRunStore(pool)
		a.svc.Baselines = &copilot.StoreBaselines{
			Store:            postgres.NewSegmentStore(pool),
			DefaultWorkspace: cfg.WorkspaceID,
			Fallback:         files,
		}
		log.Info().Str("workspace", cfg.WorkspaceID).Msg("Using Postgres workspace store")
		return a, nil
	}

	reg, err := runs.NewFileRegistry(cfg.RunsDir)
	if err != nil {
		return nil, err
	}
	a.svc.Registry = reg
	if files == nil {
		files = &copilot.FileBaselines{}
	}
	a.svc.Baselines = files
	log.Info().Str("runs", reg.Path()).Str("baseline", cfg.BaselinePath).Msg("Using file stores")
	return a, nil
}

// Close releases the database pool, if any.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
