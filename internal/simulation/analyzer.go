package simulation

import (
	"fmt"
	"math"

	"lrp-copilot/internal/stats"
)

// Thresholds for distribution diagnostics.
const (
	wideSpreadRatio   = 1.0  // (P90-P10)/|P50| above this is flagged as wide
	downsideThreshold = 0.10 // share of trials losing revenue worth flagging
	marginalBand      = 0.05 // hit probability this close to 50% is a coin toss
)

// Assess derives plain-language insights from a sorted trial distribution.
func Assess(sorted []float64, target float64, res Result) []string {
	if len(sorted) == 0 {
		return nil
	}
	var insights []string

	if res.P10 == res.P90 {
		insights = append(insights, "Deterministic: all trials produced the same delta; shocks are zero or fully absorbed by the lever bounds.")
		return insights
	}

	if ratio, ok := stats.SafeRatio(res.P90-res.P10, math.Abs(res.P50)); ok && ratio > wideSpreadRatio {
		insights = append(insights, fmt.Sprintf("Wide spread: the P10-P90 range is %.1fx the median delta. Treat the median as indicative only.", ratio))
	}

	losing := 0
	for _, d := range sorted {
		if d >= 0 {
			break
		}
		losing++
	}
	if share := float64(losing) / float64(len(sorted)); share >= downsideThreshold {
		insights = append(insights, fmt.Sprintf("Downside risk: %.0f%% of trials reduce revenue versus the baseline.", share*100))
	}

	if math.Abs(res.ProbabilityOfHit-0.5) <= marginalBand {
		insights = append(insights, "Coin toss: the target sits close to the median outcome.")
	}

	if target > 0 && res.P90 < target {
		insights = append(insights, "Out of reach: even the P90 outcome misses the target; a larger delta or an extra lever is required.")
	}

	return insights
}
