package simulation

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"lrp-copilot/internal/baseline"
)

func singleRow() baseline.Table {
	return baseline.Table{{
		Region:           "EMEA",
		Segment:          "SMB",
		PresentationRate: 0.10,
		WinRate:          0.21,
		ASPUSD:           345000,
		AttachRate:       0.5,
		WinRateBounds:    &baseline.Bounds{Min: 0, Max: 1},
		AttachRateBounds: &baseline.Bounds{Min: 0, Max: 1},
		ASPBounds:        &baseline.Bounds{Min: 100000, Max: 500000},
	}}
}

func multiRow() baseline.Table {
	return baseline.Table{
		{Region: "EMEA", Segment: "SMB", PresentationRate: 0.10, WinRate: 0.21, ASPUSD: 345000, AttachRate: 0.5, AttachARR: 20000, UnitCount: 40},
		{Region: "EMEA", Segment: "ENT", PresentationRate: 0.08, WinRate: 0.18, ASPUSD: 720000, AttachRate: 0.6, AttachARR: 50000, UnitCount: 12},
		{Region: "AMER", Segment: "SMB", PresentationRate: 0.12, WinRate: 0.25, ASPUSD: 290000, AttachRate: 0.45, AttachARR: 15000, UnitCount: 60},
		{Region: "APAC", Segment: "MM", PresentationRate: 0.09, WinRate: 0.19, ASPUSD: 410000, AttachRate: 0.55, AttachARR: 30000, UnitCount: 25},
	}
}

func shocked(req Request) Request {
	req.Shocks = Shocks{PresentationPct: 0.10, WinRatePP: 3, AttachRatePP: 5, ASPPct: 0.08}
	return req
}

func TestEngine_ConcreteScenario(t *testing.T) {
	req := Request{DeltaWinRatePP: 4, TargetUSD: 0, Trials: 1}
	res := Simulate(rand.New(rand.NewSource(1)), singleRow(), req)

	p, w, a, r := 0.10, 0.21, 345000.0, 0.5
	expected := p*r*(w+0.04)*a - p*r*w*a // P x A x (Rafter x Wafter - R x W)

	if math.Abs(res.MeanDelta-expected) > 1e-6 {
		t.Errorf("Expected delta %.6f, got %.6f", expected, res.MeanDelta)
	}
	if res.ProbabilityOfHit != 1 {
		t.Errorf("Expected probability 1, got %v", res.ProbabilityOfHit)
	}
	if res.Segments != 1 || res.Trials != 1 {
		t.Errorf("Expected 1 segment and 1 trial, got %d/%d", res.Segments, res.Trials)
	}
}

func TestEngine_ExplicitZeroBoundPinsLever(t *testing.T) {
	table := baseline.Table{{
		Region:           "EMEA",
		Segment:          "SMB",
		PresentationRate: 1,
		WinRate:          0,
		AttachRate:       0.5,
		ASPUSD:           100,
		WinRateBounds:    &baseline.Bounds{Min: 0, Max: 0},
		AttachRateBounds: &baseline.Bounds{Min: 0.5, Max: 0.5},
		ASPBounds:        &baseline.Bounds{Min: 100, Max: 100},
	}}

	res := Simulate(rand.New(rand.NewSource(1)), table, Request{DeltaWinRatePP: 4, Trials: 50})
	if res.MeanDelta != 0 || res.P10 != 0 || res.P90 != 0 {
		t.Errorf("win rate pinned at [0,0] must yield no delta, got mean %v p10 %v p90 %v", res.MeanDelta, res.P10, res.P90)
	}

	// The same row without bounds falls back to [0,1] and moves.
	table[0].WinRateBounds = nil
	res = Simulate(rand.New(rand.NewSource(1)), table, Request{DeltaWinRatePP: 4, Trials: 50})
	if math.Abs(res.MeanDelta-2) > 1e-9 {
		t.Errorf("Expected delta 2 with default bounds, got %v", res.MeanDelta)
	}
}

func TestEngine_EmptyFilter(t *testing.T) {
	e := NewEngine()
	req := shocked(Request{Region: "LATAM", DeltaASPUSD: 5000, TargetUSD: -1e9, Trials: 5000})

	res := e.Run(context.Background(), multiRow(), req)
	if res.Tuple() != [5]float64{0, 0, 0, 0, 0} {
		t.Errorf("Expected zero tuple for empty selection, got %v", res.Tuple())
	}
	if res.Segments != 0 {
		t.Errorf("Expected 0 segments, got %d", res.Segments)
	}

	if got := Simulate(rand.New(rand.NewSource(1)), nil, req).Tuple(); got != [5]float64{} {
		t.Errorf("Expected zero tuple for nil table, got %v", got)
	}
}

func TestEngine_ZeroShockReproducibility(t *testing.T) {
	req := Request{DeltaASPUSD: 10000, DeltaWinRatePP: 2, DeltaAttachPct: 0.05, TargetUSD: 0, Trials: 500}
	res := Simulate(rand.New(rand.NewSource(99)), multiRow(), req)

	if res.P10 != res.P50 || res.P50 != res.P90 {
		t.Errorf("Expected identical percentiles without shocks, got %v %v %v", res.P10, res.P50, res.P90)
	}
	if math.Abs(res.MeanDelta-res.P50) > 1e-6*math.Abs(res.P50) {
		t.Errorf("Expected mean %v to equal the single outcome %v", res.MeanDelta, res.P50)
	}
}

func TestEngine_AttachUplift(t *testing.T) {
	table := baseline.Table{{Region: "EMEA", Segment: "SMB", AttachARR: 1000, UnitCount: 10}}
	req := Request{DeltaAttachPct: 0.1, Trials: 3}

	res := Simulate(rand.New(rand.NewSource(5)), table, req)
	if math.Abs(res.P50-1000) > 1e-9 {
		t.Errorf("Expected attach uplift of 1000, got %v", res.P50)
	}
}

func TestEngine_PercentileOrdering(t *testing.T) {
	e := NewEngine()
	e.SetSeed(7)
	for _, trials := range []int{1, 2, 3, 10, 1000} {
		req := shocked(Request{DeltaASPUSD: 15000, DeltaWinRatePP: 1, Trials: trials})
		res := e.Run(context.Background(), multiRow(), req)
		if !(res.P10 <= res.P50 && res.P50 <= res.P90) {
			t.Errorf("trials=%d: percentiles out of order: %v %v %v", trials, res.P10, res.P50, res.P90)
		}
	}
}

func TestEngine_TargetMonotonicity(t *testing.T) {
	prev := 2.0
	for _, target := range []float64{-1e7, 0, 1e5, 5e5, 1e6, 5e6, 1e8} {
		req := shocked(Request{DeltaASPUSD: 20000, DeltaWinRatePP: 2, TargetUSD: target, Trials: 2000})
		res := Simulate(rand.New(rand.NewSource(11)), multiRow(), req)
		if res.ProbabilityOfHit > prev {
			t.Errorf("target=%v: probability rose from %v to %v", target, prev, res.ProbabilityOfHit)
		}
		prev = res.ProbabilityOfHit
	}
}

func TestEngine_ShockFreeConvergence(t *testing.T) {
	req := Request{DeltaWinRatePP: 4, Trials: 200}
	deterministic := Simulate(rand.New(rand.NewSource(1)), singleRow(), req).P50

	below := req
	below.TargetUSD = deterministic - 1
	if got := Simulate(rand.New(rand.NewSource(2)), singleRow(), below).ProbabilityOfHit; got != 1 {
		t.Errorf("Expected probability 1 below the deterministic delta, got %v", got)
	}

	above := req
	above.TargetUSD = deterministic + 1
	if got := Simulate(rand.New(rand.NewSource(2)), singleRow(), above).ProbabilityOfHit; got != 0 {
		t.Errorf("Expected probability 0 above the deterministic delta, got %v", got)
	}
}

func TestEngine_TrialCountScaling(t *testing.T) {
	base := shocked(Request{DeltaWinRatePP: 4, TargetUSD: 690, Trials: 1000})
	small := Simulate(rand.New(rand.NewSource(3)), singleRow(), base)

	base.Trials = 10000
	large := Simulate(rand.New(rand.NewSource(4)), singleRow(), base)

	if rel := math.Abs(small.MeanDelta-large.MeanDelta) / math.Abs(large.MeanDelta); rel > 0.02 {
		t.Errorf("Mean drifted %.2f%% between 1k and 10k trials (%v vs %v)", rel*100, small.MeanDelta, large.MeanDelta)
	}
	if diff := math.Abs(small.ProbabilityOfHit - large.ProbabilityOfHit); diff > 0.06 {
		t.Errorf("Hit probability drifted by %v between 1k and 10k trials", diff)
	}
}

func TestEngine_SeedDeterminism(t *testing.T) {
	req := shocked(Request{DeltaASPUSD: 10000, DeltaAttachRatePP: 2, Trials: 3000})

	for _, workers := range []int{1, 4} {
		e1, e2 := NewEngine(), NewEngine()
		e1.SetSeed(42)
		e2.SetSeed(42)
		e1.SetWorkers(workers)
		e2.SetWorkers(workers)

		r1 := e1.Run(context.Background(), multiRow(), req)
		r2 := e2.Run(context.Background(), multiRow(), req)
		if r1.Tuple() != r2.Tuple() {
			t.Errorf("workers=%d: expected identical results for identical seeds, got %v vs %v", workers, r1.Tuple(), r2.Tuple())
		}
		if r1.Trials != 3000 {
			t.Errorf("workers=%d: expected 3000 trials, got %d", workers, r1.Trials)
		}
	}
}

func TestEngine_ParallelMatchesSerialStatistically(t *testing.T) {
	req := shocked(Request{DeltaASPUSD: 10000, Trials: 8000})

	serial := NewEngine()
	serial.SetSeed(1)
	parallel := NewEngine()
	parallel.SetSeed(2)
	parallel.SetWorkers(8)

	rs := serial.Run(context.Background(), multiRow(), req)
	rp := parallel.Run(context.Background(), multiRow(), req)

	if rel := math.Abs(rs.MeanDelta-rp.MeanDelta) / math.Abs(rs.MeanDelta); rel > 0.03 {
		t.Errorf("Parallel mean %v deviates from serial mean %v", rp.MeanDelta, rs.MeanDelta)
	}
	if rp.Histogram.Total() != 8000 {
		t.Errorf("Expected histogram to hold 8000 samples, got %d", rp.Histogram.Total())
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	e.SetSeed(1)
	res := e.Run(ctx, multiRow(), shocked(Request{Trials: 10000}))
	if !res.Truncated {
		t.Error("Expected a truncated result for a cancelled context")
	}
	if res.Tuple() != [5]float64{} {
		t.Errorf("Expected zero tuple when no trials completed, got %v", res.Tuple())
	}
}

func TestEngine_DefaultTrials(t *testing.T) {
	for _, n := range []int{0, -5} {
		res := Simulate(rand.New(rand.NewSource(1)), singleRow(), Request{Trials: n})
		if res.Trials != DefaultTrials {
			t.Errorf("Trials=%d: expected default %d, got %d", n, DefaultTrials, res.Trials)
		}
	}
}

func TestDrawLevers_Clamping(t *testing.T) {
	seg := baseline.Segment{
		PresentationRate: 0.1,
		WinRate:          0.3,
		AttachRate:       0.6,
		ASPUSD:           300000,
		WinRateBounds:    &baseline.Bounds{Min: 0.1, Max: 0.4},
		AttachRateBounds: &baseline.Bounds{Min: 0.2, Max: 0.7},
		ASPBounds:        &baseline.Bounds{Min: 250000, Max: 320000},
	}

	cases := []Request{
		{DeltaASPUSD: 1e9, DeltaWinRatePP: 500, DeltaAttachRatePP: 500},
		{DeltaASPUSD: -1e9, DeltaWinRatePP: -500, DeltaAttachRatePP: -500},
	}

	src := rand.New(rand.NewSource(123))
	for _, req := range cases {
		req.Shocks = Shocks{PresentationPct: 0.9, WinRatePP: 80, AttachRatePP: 80, ASPPct: 0.9}
		rows, p := prepare(baseline.Table{seg}, req)
		for i := 0; i < 5000; i++ {
			lv := drawLevers(src, &rows[0], p)
			checks := []struct {
				name  string
				value float64
				b     *baseline.Bounds
			}{
				{"W*", lv.W, seg.WinRateBounds},
				{"Wafter", lv.WAfter, seg.WinRateBounds},
				{"R*", lv.R, seg.AttachRateBounds},
				{"Rafter", lv.RAfter, seg.AttachRateBounds},
				{"A*", lv.A, seg.ASPBounds},
				{"Aafter", lv.AAfter, seg.ASPBounds},
			}
			for _, c := range checks {
				if c.value < c.b.Min || c.value > c.b.Max {
					t.Fatalf("%s = %v escaped bounds [%v, %v]", c.name, c.value, c.b.Min, c.b.Max)
				}
			}
		}
	}
}

func TestFilter_ContributingRows(t *testing.T) {
	table := multiRow()
	for _, f := range []baseline.Filter{
		{Region: baseline.AllRegions, Segment: baseline.AllSegments},
		{Region: "EMEA", Segment: baseline.AllSegments},
		{Region: baseline.AllRegions, Segment: "SMB"},
		{Region: "AMER", Segment: "SMB"},
		{Region: "AMER", Segment: "ENT"},
	} {
		rows, _ := prepare(table, Request{Region: f.Region, Segment: f.Segment})
		want := 0
		for _, s := range table {
			if (f.Region == baseline.AllRegions || s.Region == f.Region) && (f.Segment == baseline.AllSegments || s.Segment == f.Segment) {
				want++
			}
		}
		if len(rows) != want {
			t.Errorf("filter %+v: expected %d contributing rows, got %d", f, want, len(rows))
		}
	}
}
