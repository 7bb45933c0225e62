// Package planner splits a revenue target across the ASP and win-rate levers
// in proportion to how much each lever can deliver before hitting its bounds.
package planner

import (
	"math"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/simulation"
)

// Sensitivities describe the revenue response of the filtered baseline.
type Sensitivities struct {
	ASPPerUSD      float64 `json:"asp_per_usd"`        // revenue per +$1 of ASP
	WinPerPP       float64 `json:"win_per_pp"`         // revenue per +1pp of win rate
	HeadroomASP    float64 `json:"headroom_asp"`       // USD of ASP before the tightest row clamps
	HeadroomWin    float64 `json:"headroom_win_pp"`    // pp of win rate before the tightest row clamps
	AttachPerPP    float64 `json:"attach_per_pp"`      // revenue per +1pp of the secondary rate
	HeadroomAttach float64 `json:"headroom_attach_pp"` // pp of secondary rate before the tightest row clamps
	UpliftPerUnit  float64 `json:"uplift_per_unit"`    // attach uplift per 1.0 of delta_attach_pct
	// ASPUnbounded is set when no row caps ASP; HeadroomASP is then 0.
	ASPUnbounded bool `json:"asp_unbounded,omitempty"`
}

// MaxASP is the revenue the ASP lever can deliver within its headroom.
func (s Sensitivities) MaxASP() float64 {
	if s.ASPUnbounded && s.ASPPerUSD > 0 {
		return math.Inf(1)
	}
	return s.ASPPerUSD * s.HeadroomASP
}

// MaxWin is the revenue the win-rate lever can deliver within its headroom.
func (s Sensitivities) MaxWin() float64 { return s.WinPerPP * s.HeadroomWin }

// Plan is the lever allocation for a target.
type Plan struct {
	Region         string        `json:"region"`
	Segment        string        `json:"segment"`
	TargetUSD      float64       `json:"target_usd"`
	Sensitivities  Sensitivities `json:"sensitivities"`
	WantASP        float64       `json:"want_asp_usd"`
	WantWin        float64       `json:"want_win_usd"`
	DeltaASPUSD    float64       `json:"delta_asp_usd"`
	DeltaWinRatePP float64       `json:"delta_win_rate_pp"`
	ShortfallUSD   float64       `json:"shortfall_usd"`
	PlatformCap    *float64      `json:"platform_cap,omitempty"`
}

// Request turns the plan into a simulation request, keeping the caller's
// shocks and trial count.
func (p Plan) Request(base simulation.Request) simulation.Request {
	base.Region = p.Region
	base.Segment = p.Segment
	base.TargetUSD = p.TargetUSD
	base.DeltaASPUSD = p.DeltaASPUSD
	base.DeltaWinRatePP = p.DeltaWinRatePP
	return base
}

// Measure derives sensitivities and headroom from the rows matching f.
// Headroom is the smallest distance to the upper bound across rows.
func Measure(table baseline.Table, f baseline.Filter) Sensitivities {
	rows := table.Select(f)
	if len(rows) == 0 {
		return Sensitivities{}
	}

	var s Sensitivities
	headA, headW, headR := math.Inf(1), math.Inf(1), math.Inf(1)
	for _, raw := range rows {
		row := raw.Normalized()
		s.ASPPerUSD += row.PresentationRate * row.AttachRate * row.WinRate
		s.WinPerPP += row.PresentationRate * row.AttachRate * row.ASPUSD / 100
		s.AttachPerPP += row.PresentationRate * row.WinRate * row.ASPUSD / 100
		s.UpliftPerUnit += row.UnitCount * row.AttachARR

		headA = math.Min(headA, row.ASPBounds.Max-row.ASPUSD)
		headW = math.Min(headW, (row.WinRateBounds.Max-row.WinRate)*100)
		headR = math.Min(headR, (row.AttachRateBounds.Max-row.AttachRate)*100)
	}

	if math.IsInf(headA, 1) {
		s.ASPUnbounded = true
	} else {
		s.HeadroomASP = nonNegative(headA)
	}
	s.HeadroomWin = nonNegative(headW)
	s.HeadroomAttach = nonNegative(headR)
	return s
}

// Allocate splits target across ASP and win rate, weighted by each lever's
// capacity, and converts the revenue shares back to lever deltas.
func Allocate(target float64, s Sensitivities) Plan {
	p := Plan{TargetUSD: target, Sensitivities: s}
	if target <= 0 {
		return p
	}

	maxA, maxW := s.MaxASP(), s.MaxWin()
	weightA := 0.0
	switch {
	case math.IsInf(maxA, 1):
		weightA = 1
	case maxA+maxW > 0:
		weightA = maxA / (maxA + maxW)
	}

	p.WantASP = math.Min(target*weightA, maxA)
	p.WantWin = math.Min(target-p.WantASP, maxW)

	dA, dW := 0.0, 0.0
	if s.ASPPerUSD > 0 {
		dA = p.WantASP / s.ASPPerUSD
	}
	if s.WinPerPP > 0 {
		dW = p.WantWin / s.WinPerPP
	}
	if !s.ASPUnbounded {
		dA = math.Min(dA, s.HeadroomASP)
	}
	p.DeltaASPUSD = math.Max(0, dA)
	p.DeltaWinRatePP = math.Max(0, math.Min(dW, s.HeadroomWin))

	p.ShortfallUSD = math.Max(0, target-(p.WantASP+p.WantWin))
	return p
}

// Single returns the delta one lever needs to deliver target alone, capped
// at its headroom. perUnit is the lever's revenue sensitivity.
func Single(target, perUnit, headroom float64, unbounded bool) float64 {
	if target <= 0 || perUnit <= 0 {
		return 0
	}
	d := target / perUnit
	if !unbounded {
		d = math.Min(d, headroom)
	}
	return math.Max(0, d)
}

// Build measures the filtered baseline and allocates target across it.
func Build(table baseline.Table, f baseline.Filter, target float64, platformCap *float64) Plan {
	f = f.Normalized()
	p := Allocate(target, Measure(table, f))
	p.Region = f.Region
	p.Segment = f.Segment
	if platformCap != nil {
		c := math.Max(0, math.Min(1, *platformCap))
		p.PlatformCap = &c
	}
	return p
}

// A row already above its bound leaves no room at all.
func nonNegative(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return x
}
