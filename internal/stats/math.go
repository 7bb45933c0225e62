package stats

import "math"

// PercentileIndex returns floor(p*(n-1)) clamped into [0, n-1].
func PercentileIndex(p float64, n int) int {
	if n <= 0 {
		return 0
	}
	last := n - 1
	ix := int(math.Floor(p * float64(last)))
	if ix < 0 {
		return 0
	}
	if ix > last {
		return last
	}
	return ix
}

// NearestRankBelow reads the p-quantile of an ascending slice without
// interpolating between neighbours.
func NearestRankBelow(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[PercentileIndex(p, len(sorted))]
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SafeRatio divides num by den, returning 0 and false when the result would
// not be finite.
func SafeRatio(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Finite maps NaN and +/-Inf to 0.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
