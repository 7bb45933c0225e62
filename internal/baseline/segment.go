package baseline

import (
	"fmt"
	"math"
	"sort"
)

const (
	// AllRegions and AllSegments are the wildcard filter values.
	AllRegions  = "All Regions"
	AllSegments = "All Segments"
)

// Bounds is an inclusive [Min, Max] clamp for a lever.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// NewBounds returns an explicit [min, max] bound.
func NewBounds(lo, hi float64) *Bounds {
	return &Bounds{Min: lo, Max: hi}
}

// Clamp pins x into [Min, Max].
func (b Bounds) Clamp(x float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, x))
}

// Segment is one (region x segment x stream) slice of the business.
type Segment struct {
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
	Region  string `json:"region" yaml:"region"`
	Segment string `json:"segment" yaml:"segment"`
	Stream  string `json:"stream,omitempty" yaml:"stream,omitempty"`

	PresentationRate float64 `json:"presentation_rate" yaml:"presentation_rate"`
	WinRate          float64 `json:"win_rate" yaml:"win_rate"`
	ASPUSD           float64 `json:"asp_usd" yaml:"asp_usd"`
	// AttachRate is the secondary rate lever (R). It is clamped and shocked
	// additively, like the win rate.
	AttachRate float64 `json:"attach_rate" yaml:"attach_rate"`
	// AttachARR is the attach metric driving the attach-uplift term.
	AttachARR float64 `json:"attach_arr" yaml:"attach_arr"`
	UnitCount float64 `json:"unit_count" yaml:"unit_count"`

	// Bounds are nil when the source omits them. An explicit {0, 0} pins
	// the lever at zero.
	WinRateBounds    *Bounds `json:"win_rate_bounds,omitempty" yaml:"win_rate_bounds,omitempty"`
	AttachRateBounds *Bounds `json:"attach_rate_bounds,omitempty" yaml:"attach_rate_bounds,omitempty"`
	ASPBounds        *Bounds `json:"asp_bounds,omitempty" yaml:"asp_bounds,omitempty"`
}

// Key identifies a segment row for snapshots and deltas.
func (s Segment) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Country, s.Region, s.Segment, s.Stream)
}

// Revenue is the deterministic contribution P x R x W x A.
func (s Segment) Revenue() float64 {
	return s.PresentationRate * s.AttachRate * s.WinRate * s.ASPUSD
}

// Normalized fills missing bounds: rates default to [0, 1] and ASP to
// [0, +Inf). Every bound of the result is non-nil and owned by the copy.
func (s Segment) Normalized() Segment {
	s.WinRateBounds = orDefault(s.WinRateBounds, 1)
	s.AttachRateBounds = orDefault(s.AttachRateBounds, 1)
	s.ASPBounds = orDefault(s.ASPBounds, math.Inf(1))
	return s
}

func orDefault(b *Bounds, hi float64) *Bounds {
	if b == nil {
		return &Bounds{Min: 0, Max: hi}
	}
	c := *b
	return &c
}

// Filter selects segment rows by region and segment label.
type Filter struct {
	Region  string `json:"region"`
	Segment string `json:"segment"`
}

// Normalized replaces empty selectors with the wildcards.
func (f Filter) Normalized() Filter {
	if f.Region == "" {
		f.Region = AllRegions
	}
	if f.Segment == "" {
		f.Segment = AllSegments
	}
	return f
}

// Matches applies the region AND segment rule.
func (f Filter) Matches(s Segment) bool {
	f = f.Normalized()
	okRegion := f.Region == AllRegions || s.Region == f.Region
	okSegment := f.Segment == AllSegments || s.Segment == f.Segment
	return okRegion && okSegment
}

// Table is an ordered baseline of segment rows.
type Table []Segment

// Select returns the rows matching f, preserving order.
func (t Table) Select(f Filter) Table {
	out := make(Table, 0, len(t))
	for _, s := range t {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Regions lists distinct region labels, sorted.
func (t Table) Regions() []string {
	return distinct(t, func(s Segment) string { return s.Region })
}

// Segments lists distinct segment labels, sorted.
func (t Table) Segments() []string {
	return distinct(t, func(s Segment) string { return s.Segment })
}

// Revenue sums the deterministic contribution of every row.
func (t Table) Revenue() float64 {
	total := 0.0
	for _, s := range t {
		total += s.Revenue()
	}
	return total
}

// Validate checks structural sanity. The engine never calls it.
func (t Table) Validate() error {
	for i, s := range t {
		if s.Region == "" {
			return fmt.Errorf("row %d: region is required", i)
		}
		if s.UnitCount < 0 {
			return fmt.Errorf("row %d (%s): unit_count must be >= 0", i, s.Key())
		}
		for name, b := range map[string]*Bounds{
			"win_rate_bounds":    s.WinRateBounds,
			"attach_rate_bounds": s.AttachRateBounds,
			"asp_bounds":         s.ASPBounds,
		} {
			if b != nil && b.Min > b.Max {
				return fmt.Errorf("row %d (%s): %s min %.4f exceeds max %.4f", i, s.Key(), name, b.Min, b.Max)
			}
		}
	}
	return nil
}

func distinct(t Table, key func(Segment) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range t {
		k := key(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
