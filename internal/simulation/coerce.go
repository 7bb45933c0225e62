package simulation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"lrp-copilot/internal/baseline"
)

// Num coerces a loosely typed scalar to a float. Missing, empty, non-numeric
// and non-finite inputs become 0.
func Num(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// TrialCount coerces a trial count, defaulting to DefaultTrials when the value
// is missing, invalid or below one.
func TrialCount(v any) int {
	n := math.Floor(Num(v))
	if n < 1 || n > math.MaxInt32 {
		return DefaultTrials
	}
	return int(n)
}

// Label coerces a filter selector, falling back to def when empty.
func Label(v any, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// RequestFromArgs builds a Request from loosely typed arguments, as they
// arrive from JSON tool calls or spreadsheet-style adapters.
func RequestFromArgs(args map[string]any) Request {
	return Request{
		Region:            Label(args["region"], baseline.AllRegions),
		Segment:           Label(args["segment"], baseline.AllSegments),
		DeltaASPUSD:       Num(args["delta_asp_usd"]),
		DeltaWinRatePP:    Num(args["delta_win_rate_pp"]),
		DeltaAttachRatePP: Num(args["delta_attach_rate_pp"]),
		DeltaAttachPct:    Num(args["delta_attach_pct"]),
		TargetUSD:         Num(args["target_usd"]),
		Trials:            TrialCount(args["trials"]),
		Shocks: Shocks{
			PresentationPct: Num(args["shock_presentation_pct"]),
			WinRatePP:       Num(args["shock_win_rate_pp"]),
			AttachRatePP:    Num(args["shock_attach_rate_pp"]),
			ASPPct:          Num(args["shock_asp_pct"]),
		},
	}
}
