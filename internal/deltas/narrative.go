package deltas

import (
	"fmt"
	"math"
	"strings"

	"lrp-copilot/internal/options"
)

// FormatUSD renders a compact dollar amount: $1.2M, $345K, $12.
func FormatUSD(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "$0"
	}
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	abs := math.Abs(amount)
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, abs/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%s$%.0fK", sign, abs/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, abs)
	}
}

// FormatPercent renders a fraction as a percentage with one decimal.
func FormatPercent(fraction float64) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// Narrative renders the analysis as markdown. ranked is expected in
// recommendation order; it may be empty.
func Narrative(prompt string, sum Summary, ranked []options.Option) string {
	var sb strings.Builder

	if prompt != "" {
		fmt.Fprintf(&sb, "You asked: %q\n\n", prompt)
	}

	sb.WriteString("## LRP Copilot Analysis\n\n")
	fmt.Fprintf(&sb, "- **ARR Before:** %s\n", FormatUSD(sum.ARRBefore))
	fmt.Fprintf(&sb, "- **ARR After:** %s\n", FormatUSD(sum.ARRAfter))
	fmt.Fprintf(&sb, "- **Total Delta:** %s\n", FormatUSD(sum.TotalDelta))
	if sum.PctDefined {
		fmt.Fprintf(&sb, "- **Percentage Change:** %.2f%%\n", sum.PctChange*100)
	} else {
		sb.WriteString("- **Percentage Change:** n/a (no baseline revenue)\n")
	}

	if len(ranked) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Strategic Options\n\n")
	for i, o := range ranked {
		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, o.Title, o.Description)
		fmt.Fprintf(&sb, "   - Feasibility: %s\n", FormatPercent(o.Feasibility))
		fmt.Fprintf(&sb, "   - Risk Level: %s\n", o.RiskLevel)
		fmt.Fprintf(&sb, "   - ARR Impact: %s (P10 %s, P90 %s)\n",
			FormatUSD(o.Result.MeanDelta), FormatUSD(o.Result.P10), FormatUSD(o.Result.P90))
		fmt.Fprintf(&sb, "   - Approach: %s\n", o.Approach)
	}

	best, _ := options.Recommend(ranked)
	fmt.Fprintf(&sb, "\n**Recommendation:** %s has the highest feasibility score (%s) and %s risk.\n",
		best.Title, FormatPercent(best.Feasibility), best.RiskLevel)

	return sb.String()
}
