package simulation

import "math"

// DefaultBuckets is the bucket count used for result histograms.
const DefaultBuckets = 20

// Histogram buckets the trial deltas for charting.
type Histogram struct {
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Width  float64   `json:"width"`
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"edges"` // lower edge of each bucket
}

// NewHistogram builds equal-width buckets over sorted deltas.
// A degenerate distribution (all values equal) collapses into one bucket.
func NewHistogram(sorted []float64, buckets int) *Histogram {
	if len(sorted) == 0 {
		return nil
	}
	if buckets < 1 {
		buckets = DefaultBuckets
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi <= lo || math.IsInf(hi-lo, 0) {
		return &Histogram{
			Min:    lo,
			Max:    hi,
			Counts: []int{len(sorted)},
			Edges:  []float64{lo},
		}
	}

	width := (hi - lo) / float64(buckets)
	h := &Histogram{
		Min:    lo,
		Max:    hi,
		Width:  width,
		Counts: make([]int, buckets),
		Edges:  make([]float64, buckets),
	}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}

	for _, v := range sorted {
		idx := int((v - lo) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Counts[idx]++
	}
	return h
}

// Total returns the number of samples in the histogram.
func (h *Histogram) Total() int {
	if h == nil {
		return 0
	}
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}
