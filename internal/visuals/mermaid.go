package visuals

import (
	"fmt"
	"math"
	"strings"

	"lrp-copilot/internal/deltas"
	"lrp-copilot/internal/options"
	"lrp-copilot/internal/simulation"
)

// GenerateDistributionChart creates a Mermaid bar chart of the simulated ARR delta distribution.
func GenerateDistributionChart(h *simulation.Histogram) string {
	if h == nil || len(h.Counts) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0
	for i, count := range h.Counts {
		labels = append(labels, fmt.Sprintf("\"%s\"", deltas.FormatUSD(h.Edges[i])))
		values = append(values, fmt.Sprintf("%d", count))
		if count > maxVal {
			maxVal = count
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"ARR Delta Distribution (Trials per Bucket)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Trials\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GeneratePercentileChart shows P10, mean, P50 and P90 against the target as a flat line.
func GeneratePercentileChart(res simulation.Result, target float64) string {
	if res.Trials == 0 {
		return ""
	}

	points := []float64{res.P10, res.MeanDelta, res.P50, res.P90}
	values := make([]string, len(points))
	targets := make([]string, len(points))
	lo, hi := math.Min(0, target), math.Max(0, target)
	for i, v := range points {
		values[i] = fmt.Sprintf("%.0f", v)
		targets[i] = fmt.Sprintf("%.0f", target)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	yLo, yHi := axisRange(lo, hi)

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"ARR Delta vs Target (USD)\"\n")
	sb.WriteString("    x-axis [\"P10\", \"Mean\", \"P50\", \"P90\"]\n")
	sb.WriteString(fmt.Sprintf("    y-axis \"ARR Delta (USD)\" %d --> %d\n", yLo, yHi))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(targets, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateOptionsChart compares the feasibility of the strategic options in rank order.
func GenerateOptionsChart(opts []options.Option) string {
	if len(opts) == 0 {
		return ""
	}

	var labels []string
	var values []string
	for _, o := range opts {
		// Mermaid axis labels break on spaces in some renderers
		labels = append(labels, fmt.Sprintf("\"%s\"", strings.ReplaceAll(o.ID, " ", "_")))
		values = append(values, fmt.Sprintf("%.1f", o.Feasibility*100))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Strategic Options (Feasibility %)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Probability of Hitting Target (%)\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateARRBridge creates a Mermaid bar chart of ARR before and after the change.
func GenerateARRBridge(sum deltas.Summary) string {
	if sum.ARRBefore == 0 && sum.ARRAfter == 0 {
		return ""
	}

	lo, hi := axisRange(math.Min(0, math.Min(sum.ARRBefore, sum.ARRAfter)), math.Max(sum.ARRBefore, sum.ARRAfter))

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"ARR Bridge (USD)\"\n")
	sb.WriteString("    x-axis [\"Before\", \"After\"]\n")
	sb.WriteString(fmt.Sprintf("    y-axis \"ARR (USD)\" %d --> %d\n", lo, hi))
	sb.WriteString(fmt.Sprintf("    bar [%.0f, %.0f]\n", sum.ARRBefore, sum.ARRAfter))
	sb.WriteString("```")
	return sb.String()
}

// axisRange pads [lo, hi] by 10% of the span and rounds outwards.
func axisRange(lo, hi float64) (int, int) {
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(1, math.Abs(hi)*0.1)
	}
	if lo < 0 {
		lo -= pad
	}
	return int(math.Floor(lo)), int(math.Ceil(hi + pad))
}
