package simulation

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultTrials is used when a request asks for fewer than one trial.
const DefaultTrials = 1000

// ctxCheckEvery bounds how many trials run between cancellation checks.
const ctxCheckEvery = 256

// Source is the uniform [0,1) random stream the sampler draws from.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Shocks are the half-widths of the uniform noise applied per segment per trial.
type Shocks struct {
	PresentationPct float64 `json:"shock_presentation_pct"`
	WinRatePP       float64 `json:"shock_win_rate_pp"`
	AttachRatePP    float64 `json:"shock_attach_rate_pp"`
	ASPPct          float64 `json:"shock_asp_pct"`
}

// Request holds the parameters of one simulation.
type Request struct {
	Region  string `json:"region"`
	Segment string `json:"segment"`

	DeltaASPUSD       float64 `json:"delta_asp_usd"`
	DeltaWinRatePP    float64 `json:"delta_win_rate_pp"`
	DeltaAttachRatePP float64 `json:"delta_attach_rate_pp"`
	DeltaAttachPct    float64 `json:"delta_attach_pct"`

	TargetUSD float64 `json:"target_usd"`
	Trials    int     `json:"trials"`

	Shocks
}

// Filter returns the segment selector of the request.
func (r Request) Filter() baseline.Filter {
	return baseline.Filter{Region: r.Region, Segment: r.Segment}.Normalized()
}

// Result summarises the trial distribution.
type Result struct {
	ProbabilityOfHit float64 `json:"probability_of_hit"`
	MeanDelta        float64 `json:"mean_delta"`
	P10              float64 `json:"p10"`
	P50              float64 `json:"p50"`
	P90              float64 `json:"p90"`

	Trials    int        `json:"trials"`
	Segments  int        `json:"segments"`
	Truncated bool       `json:"truncated,omitempty"`
	Histogram *Histogram `json:"histogram,omitempty"`
	Insights  []string   `json:"insights,omitempty"`
}

// Tuple returns {probabilityOfHit, meanDelta, p10, p50, p90}.
func (r Result) Tuple() [5]float64 {
	return [5]float64{r.ProbabilityOfHit, r.MeanDelta, r.P10, r.P50, r.P90}
}

// Engine performs the Monte-Carlo simulation.
// It is safe for concurrent use; each Run draws its own seed from the engine.
type Engine struct {
	mu      sync.Mutex
	rng     *rand.Rand
	workers int
}

func NewEngine() *Engine {
	return &Engine{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		workers: 1,
	}
}

// SetSeed makes subsequent runs reproducible.
func (e *Engine) SetSeed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewSource(seed))
}

// SetWorkers sets how many goroutines share the trial loop.
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workers = n
}

func (e *Engine) nextSeed() (int64, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Int63(), e.workers
}

// Run simulates req against table. When ctx is cancelled mid-way the result
// is reduced from the trials completed so far and marked Truncated.
func (e *Engine) Run(ctx context.Context, table baseline.Table, req Request) Result {
	seed, workers := e.nextSeed()

	rows, p := prepare(table, req)
	if len(rows) == 0 {
		log.Debug().Str("region", p.region).Str("segment", p.segment).Msg("No segments matched filter, returning zero result")
		return Result{Trials: p.trials}
	}
	if workers > p.trials {
		workers = p.trials
	}

	deltas := make([]float64, p.trials)
	completed := make([]int, workers)

	if workers == 1 {
		completed[0] = runTrials(ctx, rand.New(rand.NewSource(seed)), rows, p, deltas)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			start, end := w*p.trials/workers, (w+1)*p.trials/workers
			src := rand.New(rand.NewSource(seed + int64(w)))
			g.Go(func() error {
				completed[w] = runTrials(gctx, src, rows, p, deltas[start:end])
				return nil
			})
		}
		_ = g.Wait()
	}

	// Compact the completed prefix of each worker's chunk.
	kept := deltas[:0]
	total := 0
	for w := 0; w < workers; w++ {
		start := w * p.trials / workers
		kept = append(kept, deltas[start:start+completed[w]]...)
		total += completed[w]
	}

	res := summarize(kept, p.target)
	res.Segments = len(rows)
	if total < p.trials {
		res.Truncated = true
		log.Warn().Int("completed", total).Int("requested", p.trials).Msg("Simulation interrupted, reducing partial trials")
	}

	log.Debug().
		Int("segments", len(rows)).
		Int("trials", total).
		Int("workers", workers).
		Float64("prob_hit", res.ProbabilityOfHit).
		Float64("p50", res.P50).
		Msg("Simulation complete")

	return res
}

// Simulate runs req serially against table using src. It has no state besides src.
func Simulate(src Source, table baseline.Table, req Request) Result {
	rows, p := prepare(table, req)
	if len(rows) == 0 {
		return Result{Trials: p.trials}
	}
	deltas := make([]float64, p.trials)
	runTrials(context.Background(), src, rows, p, deltas)

	res := summarize(deltas, p.target)
	res.Segments = len(rows)
	return res
}

// params are the request scalars converted to the units the sampler uses.
type params struct {
	region, segment string

	dASP, dWin, dAttach, dAttachPct float64
	target                          float64
	trials                          int

	shockP, shockW, shockR, shockA float64
}

func prepare(table baseline.Table, req Request) ([]baseline.Segment, params) {
	f := req.Filter()
	trials := req.Trials
	if trials < 1 {
		trials = DefaultTrials
	}

	p := params{
		region:     f.Region,
		segment:    f.Segment,
		dASP:       stats.Finite(req.DeltaASPUSD),
		dWin:       stats.Finite(req.DeltaWinRatePP) / 100,
		dAttach:    stats.Finite(req.DeltaAttachRatePP) / 100,
		dAttachPct: stats.Finite(req.DeltaAttachPct),
		target:     stats.Finite(req.TargetUSD),
		trials:     trials,
		shockP:     stats.Finite(req.PresentationPct),
		shockW:     stats.Finite(req.WinRatePP) / 100,
		shockR:     stats.Finite(req.AttachRatePP) / 100,
		shockA:     stats.Finite(req.ASPPct),
	}

	selected := table.Select(f)
	rows := make([]baseline.Segment, len(selected))
	for i, s := range selected {
		rows[i] = s.Normalized()
	}
	return rows, p
}

// runTrials fills out with trial deltas and returns how many were drawn.
func runTrials(ctx context.Context, src Source, rows []baseline.Segment, p params, out []float64) int {
	for t := range out {
		if t%ctxCheckEvery == 0 && ctx.Err() != nil {
			return t
		}
		out[t] = drawTrial(src, rows, p)
	}
	return len(out)
}

// levers are one segment's sampled values for a single trial.
type levers struct {
	P, W, R, A             float64
	WAfter, RAfter, AAfter float64
	AttachARR              float64
}

func uniform(src Source, halfWidth float64) float64 {
	return -halfWidth + src.Float64()*(2*halfWidth)
}

// drawLevers shocks one row and applies the proposed deltas. The draw order
// (P, W, R, A, attach) is part of the reproducibility contract.
func drawLevers(src Source, s *baseline.Segment, p params) levers {
	var lv levers
	lv.P = s.PresentationRate * (1 + uniform(src, p.shockP))
	lv.W = s.WinRateBounds.Clamp(s.WinRate + uniform(src, p.shockW))
	lv.R = s.AttachRateBounds.Clamp(s.AttachRate + uniform(src, p.shockR))
	lv.A = s.ASPBounds.Clamp(s.ASPUSD * (1 + uniform(src, p.shockA)))

	lv.WAfter = s.WinRateBounds.Clamp(lv.W + p.dWin)
	lv.RAfter = s.AttachRateBounds.Clamp(lv.R + p.dAttach)
	lv.AAfter = s.ASPBounds.Clamp(lv.A + p.dASP)

	lv.AttachARR = s.AttachARR * (1 + uniform(src, p.shockA))
	return lv
}

func drawTrial(src Source, rows []baseline.Segment, p params) float64 {
	before, after, attachAdd := 0.0, 0.0, 0.0
	for i := range rows {
		lv := drawLevers(src, &rows[i], p)
		before += lv.P * lv.R * lv.W * lv.A
		after += lv.P * lv.RAfter * lv.WAfter * lv.AAfter
		attachAdd += p.dAttachPct * rows[i].UnitCount * lv.AttachARR
	}
	return stats.Finite((after - before) + attachAdd)
}

func summarize(deltas []float64, target float64) Result {
	n := len(deltas)
	if n == 0 {
		return Result{}
	}

	hits := 0
	for _, d := range deltas {
		if d >= target {
			hits++
		}
	}

	sort.Float64s(deltas)

	res := Result{
		ProbabilityOfHit: float64(hits) / float64(n),
		MeanDelta:        stats.Finite(stats.Mean(deltas)),
		P10:              stats.NearestRankBelow(deltas, 0.10),
		P50:              stats.NearestRankBelow(deltas, 0.50),
		P90:              stats.NearestRankBelow(deltas, 0.90),
		Trials:           n,
		Histogram:        NewHistogram(deltas, DefaultBuckets),
	}
	res.Insights = Assess(deltas, target, res)
	return res
}
