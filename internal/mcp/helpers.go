package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"lrp-copilot/internal/copilot"
	"lrp-copilot/internal/simulation"
)

// ResponseEnvelope is the common shape of every tool result.
type ResponseEnvelope struct {
	Context  interface{} `json:"context,omitempty"`
	Data     interface{} `json:"data"`
	Warnings []string    `json:"warnings,omitempty"`
	Charts   []string    `json:"-"`
	Guidance []string    `json:"guidance,omitempty"`
}

// WrapResponse builds the envelope returned to the client.
func WrapResponse(data interface{}, context interface{}, warnings, charts, guidance []string) ResponseEnvelope {
	return ResponseEnvelope{
		Context:  context,
		Data:     data,
		Warnings: warnings,
		Charts:   charts,
		Guidance: guidance,
	}
}

func (s *Server) formatResult(data interface{}) string {
	out, _ := json.MarshalIndent(data, "", "  ")
	if env, ok := data.(ResponseEnvelope); ok && len(env.Charts) > 0 {
		// Charts are appended as raw markdown so clients can render them.
		return string(out) + "\n\n" + strings.Join(env.Charts, "\n\n")
	}
	return string(out)
}

func scenarioContext(q copilot.Query) map[string]interface{} {
	f := q.Filter()
	ctx := map[string]interface{}{
		"region":     f.Region,
		"segment":    f.Segment,
		"target_usd": q.TargetUSD,
	}
	if q.WorkspaceID != "" {
		ctx["workspace_id"] = q.WorkspaceID
	}
	return ctx
}

func scenarioWarnings(res simulation.Result) []string {
	var warnings []string
	if res.Segments == 0 {
		warnings = append(warnings, "NO DATA WARNING: no baseline segment matches the region and segment filters. The result is zero and MUST NOT be read as a forecast.")
	}
	if res.Truncated {
		warnings = append(warnings, fmt.Sprintf("INTERRUPTED: the simulation stopped after %d trials. Percentiles are based on the completed trials only.", res.Trials))
	}
	return warnings
}

func appendChart(charts []string, chart string) []string {
	if chart == "" {
		return charts
	}
	return append(charts, chart)
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
