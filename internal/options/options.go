package options

import (
	"context"
	"fmt"
	"sort"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/planner"
	"lrp-copilot/internal/simulation"

	"golang.org/x/sync/errgroup"
)

// Risk levels derived from feasibility.
const (
	RiskLow       = "low"
	RiskMediumLow = "medium-low"
	RiskMedium    = "medium"
	RiskHigh      = "high"
)

// RiskLevel maps a hit probability to a coarse risk label.
func RiskLevel(feasibility float64) string {
	switch {
	case feasibility >= 0.75:
		return RiskLow
	case feasibility >= 0.5:
		return RiskMediumLow
	case feasibility >= 0.25:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Option is one way of reaching the target, evaluated by simulation.
type Option struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Approach    string             `json:"approach"`
	Request     simulation.Request `json:"request"`
	Result      simulation.Result  `json:"result"`
	Feasibility float64            `json:"feasibility"`
	RiskLevel   string             `json:"risk_level"`
}

// Runner is the part of the engine options need.
type Runner interface {
	Run(ctx context.Context, table baseline.Table, req simulation.Request) simulation.Result
}

// Candidates builds the standard option set for base.TargetUSD: one option
// per lever plus the blended allocation from plan.
func Candidates(base simulation.Request, plan planner.Plan) []Option {
	s := plan.Sensitivities
	target := base.TargetUSD

	strip := func(r simulation.Request) simulation.Request {
		r.DeltaASPUSD, r.DeltaWinRatePP, r.DeltaAttachRatePP, r.DeltaAttachPct = 0, 0, 0, 0
		return r
	}

	win := strip(base)
	win.DeltaWinRatePP = planner.Single(target, s.WinPerPP, s.HeadroomWin, false)

	asp := strip(base)
	asp.DeltaASPUSD = planner.Single(target, s.ASPPerUSD, s.HeadroomASP, s.ASPUnbounded)

	attach := strip(base)
	attach.DeltaAttachRatePP = planner.Single(target, s.AttachPerPP, s.HeadroomAttach, false)

	uplift := strip(base)
	uplift.DeltaAttachPct = planner.Single(target, s.UpliftPerUnit, 0, true)

	blended := plan.Request(strip(base))

	return []Option{
		{
			ID:          "win-rate",
			Title:       "Win Rate Only",
			Description: "Conversion-led approach",
			Approach:    fmt.Sprintf("Improve win rate by %.2fpp across the selected segments", win.DeltaWinRatePP),
			Request:     win,
		},
		{
			ID:          "asp",
			Title:       "ASP Only",
			Description: "Price-led approach",
			Approach:    fmt.Sprintf("Increase ASP by $%.0f per deal", asp.DeltaASPUSD),
			Request:     asp,
		},
		{
			ID:          "attach-rate",
			Title:       "Secondary Rate Only",
			Description: "Rate-led approach on the secondary lever",
			Approach:    fmt.Sprintf("Lift the secondary rate by %.2fpp", attach.DeltaAttachRatePP),
			Request:     attach,
		},
		{
			ID:          "attach-uplift",
			Title:       "Attach Uplift",
			Description: "Installed-base attach approach",
			Approach:    fmt.Sprintf("Grow attach by %.2f%% of the attach base", uplift.DeltaAttachPct*100),
			Request:     uplift,
		},
		{
			ID:          "blended",
			Title:       "Blended",
			Description: "Balanced multi-lever approach",
			Approach:    fmt.Sprintf("Combined: ASP +$%.0f, win rate +%.2fpp", blended.DeltaASPUSD, blended.DeltaWinRatePP),
			Request:     blended,
		},
	}
}

// Evaluate simulates every option concurrently (at most parallel at a time)
// and returns them ranked.
func Evaluate(ctx context.Context, runner Runner, table baseline.Table, opts []Option, parallel int) ([]Option, error) {
	out := make([]Option, len(opts))
	copy(out, opts)

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i := range out {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := runner.Run(gctx, table, out[i].Request)
			if res.Truncated {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fmt.Errorf("option %s stopped after %d trials", out[i].ID, res.Trials)
			}
			out[i].Result = res
			out[i].Feasibility = res.ProbabilityOfHit
			out[i].RiskLevel = RiskLevel(res.ProbabilityOfHit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("option evaluation interrupted: %w", err)
	}

	Rank(out)
	return out, nil
}

// Rank orders options by feasibility, then mean delta, both descending.
func Rank(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Feasibility != opts[j].Feasibility {
			return opts[i].Feasibility > opts[j].Feasibility
		}
		return opts[i].Result.MeanDelta > opts[j].Result.MeanDelta
	})
}

// Recommend returns the top-ranked option, or false when there is none.
func Recommend(ranked []Option) (Option, bool) {
	if len(ranked) == 0 {
		return Option{}, false
	}
	return ranked[0], true
}
