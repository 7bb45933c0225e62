package copilot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/observability"
	"lrp-copilot/internal/runs"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testTable() baseline.Table {
	return baseline.Table{
		{
			Region:           "EMEA",
			Segment:          "SMB",
			PresentationRate: 0.1,
			WinRate:          0.21,
			ASPUSD:           345000,
			AttachRate:       0.5,
			WinRateBounds:    &baseline.Bounds{Min: 0.05, Max: 0.25},
			ASPBounds:        &baseline.Bounds{Min: 200000, Max: 370000},
		},
		{
			Region:           "AMER",
			Segment:          "ENT",
			PresentationRate: 0.2,
			WinRate:          0.3,
			ASPUSD:           500000,
			AttachRate:       0.4,
		},
	}
}

func newTestService(t *testing.T) (*Service, *runs.FileRegistry) {
	t.Helper()
	reg, err := runs.NewFileRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRegistry failed: %v", err)
	}
	engine := simulation.NewEngine()
	engine.SetSeed(42)

	return &Service{
		Engine:            engine,
		Baselines:         StaticBaselines(testTable()),
		Registry:          reg,
		Metrics:           observability.NewMetrics("test", prometheus.NewRegistry()),
		DefaultTrials:     200,
		OptionParallelism: 2,
	}, reg
}

func TestService_AnalyzePlansTarget(t *testing.T) {
	svc, reg := newTestService(t)
	ctx := context.Background()

	q := Query{Prompt: "Increase EMEA ARR by $500", Request: simulation.Request{Region: "EMEA", TargetUSD: 500}}
	a, err := svc.Analyze(ctx, q)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if a.Plan == nil {
		t.Fatal("expected a plan when the query has no deltas")
	}
	if a.Request.DeltaASPUSD != a.Plan.DeltaASPUSD || a.Request.DeltaWinRatePP != a.Plan.DeltaWinRatePP {
		t.Errorf("request must carry the planned deltas: %+v vs %+v", a.Request, a.Plan)
	}
	if a.Request.Segment != baseline.AllSegments {
		t.Errorf("empty segment must normalize to the wildcard, got %q", a.Request.Segment)
	}
	if a.Result.Trials != 200 || a.Result.Segments != 1 {
		t.Errorf("unexpected result shape: trials=%d segments=%d", a.Result.Trials, a.Result.Segments)
	}
	if len(a.Options) != 5 || a.Recommended == nil {
		t.Fatalf("expected 5 ranked options and a recommendation, got %d", len(a.Options))
	}
	if a.Recommended.ID != a.Options[0].ID {
		t.Errorf("recommendation must be the top-ranked option")
	}
	if !strings.Contains(a.Narrative, q.Prompt) || !strings.Contains(a.Narrative, "Recommendation") {
		t.Errorf("unexpected narrative:\n%s", a.Narrative)
	}
	if len(a.Drivers) == 0 {
		t.Error("expected driver changes from the planned deltas")
	}

	run, err := reg.Get(ctx, a.RunID)
	if err != nil {
		t.Fatalf("run not registered: %v", err)
	}
	if run.Status != runs.StatusDone || run.ProbabilityOfHit == nil {
		t.Errorf("expected DONE run with result, got %+v", run)
	}
	if run.DeltaASPUSD != a.Request.DeltaASPUSD || run.Prompt != q.Prompt {
		t.Errorf("run must record planned deltas and prompt, got %+v", run)
	}
	if !strings.HasPrefix(a.RunLabel, "RUN_") {
		t.Errorf("unexpected label %q", a.RunLabel)
	}

	if got := testutil.ToFloat64(svc.Metrics.RunsTotal.WithLabelValues("DONE")); got != 1 {
		t.Errorf("expected 1 DONE run metric, got %v", got)
	}
}

func TestService_AnalyzeExplicitDeltas(t *testing.T) {
	svc, _ := newTestService(t)

	q := Query{Request: simulation.Request{Region: "AMER", DeltaASPUSD: 10000, TargetUSD: 1}}
	a, err := svc.Analyze(context.Background(), q)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Plan != nil {
		t.Error("explicit deltas must not be replaced by a plan")
	}
	if a.Request.DeltaASPUSD != 10000 {
		t.Errorf("explicit delta lost: %+v", a.Request)
	}
	// 0.2 * 0.4 * 0.3 * 10000 = 240 > 1 on every trial without shocks.
	if a.Result.ProbabilityOfHit != 1 {
		t.Errorf("expected certain hit, got %v", a.Result.ProbabilityOfHit)
	}
}

func TestService_AnalyzeCancelledFinishesFailed(t *testing.T) {
	svc, reg := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, Query{Request: simulation.Request{TargetUSD: 100}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	all, _ := reg.List(context.Background(), 0)
	if len(all) != 1 {
		t.Fatalf("expected one registered run, got %d", len(all))
	}
	if all[0].Status != runs.StatusFailed || !strings.Contains(all[0].Notes, "interrupted") {
		t.Errorf("expected FAILED run with notes, got %+v", all[0])
	}
}

func TestService_BaselineErrorRegistersNothing(t *testing.T) {
	svc, reg := newTestService(t)
	svc.Baselines = &FileBaselines{Path: filepath.Join(t.TempDir(), "missing.yaml")}

	if _, err := svc.Analyze(context.Background(), Query{}); err == nil {
		t.Fatal("expected error for missing baseline file")
	}
	all, _ := reg.List(context.Background(), 0)
	if len(all) != 0 {
		t.Errorf("expected no runs, got %d", len(all))
	}
}

func TestService_SimulateDefaults(t *testing.T) {
	svc, reg := newTestService(t)
	svc.DefaultShocks = simulation.Shocks{WinRatePP: 2}

	req, _ := svc.request(Query{})
	if req.Trials != 200 || req.WinRatePP != 2 {
		t.Errorf("defaults not applied: %+v", req)
	}
	if req, _ := svc.request(Query{NoShocks: true}); req.WinRatePP != 0 {
		t.Errorf("NoShocks must keep shocks at zero, got %+v", req.Shocks)
	}
	explicit := Query{Request: simulation.Request{Trials: 50, Shocks: simulation.Shocks{ASPPct: 0.1}}}
	if req, _ := svc.request(explicit); req.Trials != 50 || req.WinRatePP != 0 || req.ASPPct != 0.1 {
		t.Errorf("explicit values must win, got %+v", req)
	}

	res, err := svc.Simulate(context.Background(), Query{Request: simulation.Request{Region: "LATAM"}})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if res.Tuple() != [5]float64{} {
		t.Errorf("empty selection must give a zero result, got %v", res.Tuple())
	}
	if all, _ := reg.List(context.Background(), 0); len(all) != 0 {
		t.Errorf("Simulate must not register runs, got %d", len(all))
	}
}

func TestService_NoEngine(t *testing.T) {
	svc := &Service{Baselines: StaticBaselines(testTable())}
	if _, err := svc.Simulate(context.Background(), Query{}); !errors.Is(err, ErrNoEngine) {
		t.Errorf("expected ErrNoEngine, got %v", err)
	}
	if _, err := svc.Runs(context.Background(), 10); err == nil {
		t.Error("expected error without registry")
	}
}

type fakeStore struct {
	tables map[string]baseline.Table
}

func (f *fakeStore) ReplaceBaseline(_ context.Context, id string, table baseline.Table) error {
	f.tables[id] = table
	return nil
}

func (f *fakeStore) LoadBaseline(_ context.Context, id string) (baseline.Table, error) {
	t, ok := f.tables[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func TestStoreBaselines(t *testing.T) {
	store := &fakeStore{tables: map[string]baseline.Table{"fy26": testTable()[:1]}}
	src := &StoreBaselines{Store: store, DefaultWorkspace: "fy26"}
	ctx := context.Background()

	table, err := src.Table(ctx, "")
	if err != nil || len(table) != 1 {
		t.Fatalf("default workspace: got %d rows, err %v", len(table), err)
	}

	if _, err := src.Table(ctx, "other"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound without fallback, got %v", err)
	}

	src.Fallback = StaticBaselines(testTable())
	table, err = src.Table(ctx, "other")
	if err != nil || len(table) != 2 {
		t.Errorf("fallback: got %d rows, err %v", len(table), err)
	}
}

func TestService_MaxTrials(t *testing.T) {
	svc, reg := newTestService(t)
	svc.MaxTrials = 500
	ctx := context.Background()

	huge := QueryFromArgs(map[string]any{"region": "EMEA", "target_usd": 500, "trials": "2000000000"})
	if _, err := svc.Simulate(ctx, huge); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Simulate: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Plan(ctx, huge); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Plan: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Analyze(ctx, huge); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Analyze: expected ErrInvalidInput, got %v", err)
	}
	if all, _ := reg.List(ctx, 0); len(all) != 0 {
		t.Errorf("a rejected query must not register a run, got %d", len(all))
	}

	res, err := svc.Simulate(ctx, Query{Request: simulation.Request{Region: "EMEA", Trials: 500}})
	if err != nil {
		t.Fatalf("Simulate at the limit failed: %v", err)
	}
	if res.Trials != 500 {
		t.Errorf("expected 500 trials, got %d", res.Trials)
	}
}
