// Package deltas computes deterministic before/after snapshots of a scenario
// and the per-segment changes they imply.
package deltas

import (
	"math"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/stats"
)

// Change kinds.
const (
	KindDriver = "DRIVER"
	KindOutput = "OUTPUT"
)

// Tracked driver fields and output metrics.
const (
	FieldWinRate       = "Win Rate"
	FieldASP           = "ASP"
	FieldSecondaryRate = "Secondary Rate"

	MetricLanding = "ARR - Landing"
	MetricAttach  = "ARR - Attach"
	MetricTotal   = "ARR"
)

const (
	driverEpsilon = 1e-12
	outputEpsilon = 1e-6
)

// Change is one before/after row.
type Change struct {
	Kind    string `json:"kind"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	Segment string `json:"segment,omitempty"`
	Stream  string `json:"stream,omitempty"`
	Field   string `json:"field"`

	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
	// PctDelta is Delta/Before; PctDefined is false when Before is zero.
	PctDelta   float64 `json:"pct_delta"`
	PctDefined bool    `json:"pct_defined"`
}

func newChange(kind string, s baseline.Segment, field string, before, after float64) Change {
	c := Change{
		Kind:    kind,
		Country: s.Country,
		Region:  s.Region,
		Segment: s.Segment,
		Stream:  s.Stream,
		Field:   field,
		Before:  before,
		After:   after,
		Delta:   after - before,
	}
	c.PctDelta, c.PctDefined = stats.SafeRatio(c.Delta, before)
	return c
}

// Snapshot is the shock-free state of the included rows around a request.
type Snapshot struct {
	Before baseline.Table `json:"before"`
	After  baseline.Table `json:"after"`
	// AttachPct is the attach uplift applied on top of After.
	AttachPct float64 `json:"attach_pct"`
}

// Apply applies the request's deltas without shocks to every row matching
// its filter. Each lever is clamped to the row's bounds.
func Apply(table baseline.Table, req simulation.Request) Snapshot {
	rows := table.Select(req.Filter())
	snap := Snapshot{
		Before:    make(baseline.Table, len(rows)),
		After:     make(baseline.Table, len(rows)),
		AttachPct: stats.Finite(req.DeltaAttachPct),
	}

	dWin := stats.Finite(req.DeltaWinRatePP) / 100
	dAttach := stats.Finite(req.DeltaAttachRatePP) / 100
	dASP := stats.Finite(req.DeltaASPUSD)

	for i, raw := range rows {
		row := raw.Normalized()
		snap.Before[i] = row

		after := row
		after.WinRate = row.WinRateBounds.Clamp(row.WinRate + dWin)
		after.AttachRate = row.AttachRateBounds.Clamp(row.AttachRate + dAttach)
		after.ASPUSD = row.ASPBounds.Clamp(row.ASPUSD + dASP)
		snap.After[i] = after
	}
	return snap
}

// Drivers lists the lever changes per row, skipping unchanged fields.
func (s Snapshot) Drivers() []Change {
	var out []Change
	for i := range s.Before {
		b, a := s.Before[i], s.After[i]
		for _, f := range []struct {
			name          string
			before, after float64
		}{
			{FieldWinRate, b.WinRate, a.WinRate},
			{FieldASP, b.ASPUSD, a.ASPUSD},
			{FieldSecondaryRate, b.AttachRate, a.AttachRate},
		} {
			if math.Abs(f.after-f.before) < driverEpsilon {
				continue
			}
			out = append(out, newChange(KindDriver, b, f.name, f.before, f.after))
		}
	}
	return out
}

// Outputs lists the revenue changes per row followed by the ARR total.
// The total row is always present.
func (s Snapshot) Outputs() []Change {
	var out []Change
	for i := range s.Before {
		b, a := s.Before[i], s.After[i]

		landing := newChange(KindOutput, b, MetricLanding, b.Revenue(), a.Revenue())
		if math.Abs(landing.Delta) >= outputEpsilon {
			out = append(out, landing)
		}

		uplift := s.AttachPct * b.UnitCount * b.AttachARR
		if math.Abs(uplift) >= outputEpsilon {
			out = append(out, newChange(KindOutput, b, MetricAttach, 0, uplift))
		}
	}

	sum := s.Summary()
	total := Change{
		Kind:       KindOutput,
		Field:      MetricTotal,
		Before:     sum.ARRBefore,
		After:      sum.ARRAfter,
		Delta:      sum.TotalDelta,
		PctDelta:   sum.PctChange,
		PctDefined: sum.PctDefined,
	}
	return append(out, total)
}

// Summary is the aggregate before/after ARR of a snapshot.
type Summary struct {
	ARRBefore  float64 `json:"arr_before"`
	ARRAfter   float64 `json:"arr_after"`
	TotalDelta float64 `json:"total_delta"`
	PctChange  float64 `json:"pct_change"`
	PctDefined bool    `json:"pct_defined"`
}

// Summary totals the snapshot, including the attach uplift.
func (s Snapshot) Summary() Summary {
	var sum Summary
	for i := range s.Before {
		sum.ARRBefore += s.Before[i].Revenue()
		sum.ARRAfter += s.After[i].Revenue() + s.AttachPct*s.Before[i].UnitCount*s.Before[i].AttachARR
	}
	sum.ARRBefore = stats.Finite(sum.ARRBefore)
	sum.ARRAfter = stats.Finite(sum.ARRAfter)
	sum.TotalDelta = sum.ARRAfter - sum.ARRBefore
	sum.PctChange, sum.PctDefined = stats.SafeRatio(sum.TotalDelta, sum.ARRBefore)
	return sum
}
