package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// filterArgs documents the segment selectors shared by every scenario tool.
type filterArgs struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Optional workspace holding the baseline. Defaults to the configured workspace."`
	Region      string `json:"region,omitempty" jsonschema:"Region label, or 'All Regions' (default)."`
	Segment     string `json:"segment,omitempty" jsonschema:"Segment label, or 'All Segments' (default)."`
}

// scenarioArgs documents the inputs of simulate_scenario. Handlers read the
// raw argument map so numeric strings are still accepted.
type scenarioArgs struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Optional workspace holding the baseline. Defaults to the configured workspace."`
	Region      string `json:"region,omitempty" jsonschema:"Region label, or 'All Regions' (default)."`
	Segment     string `json:"segment,omitempty" jsonschema:"Segment label, or 'All Segments' (default)."`

	DeltaASPUSD       float64 `json:"delta_asp_usd,omitempty" jsonschema:"Change of average selling price in USD."`
	DeltaWinRatePP    float64 `json:"delta_win_rate_pp,omitempty" jsonschema:"Change of win rate in percentage points (4 means +4pp)."`
	DeltaAttachRatePP float64 `json:"delta_attach_rate_pp,omitempty" jsonschema:"Change of the secondary (attach) rate in percentage points."`
	DeltaAttachPct    float64 `json:"delta_attach_pct,omitempty" jsonschema:"Attach uplift per unit as a fraction of the attach metric."`
	TargetUSD         float64 `json:"target_usd,omitempty" jsonschema:"ARR target in USD. A trial hits when its delta reaches the target."`
	Trials            int     `json:"trials,omitempty" jsonschema:"Number of Monte-Carlo trials. Defaults to the configured trial count."`

	ShockPresentationPct float64 `json:"shock_presentation_pct,omitempty" jsonschema:"Half-width of the presentation rate noise as a fraction."`
	ShockWinRatePP       float64 `json:"shock_win_rate_pp,omitempty" jsonschema:"Half-width of the win rate noise in percentage points."`
	ShockAttachRatePP    float64 `json:"shock_attach_rate_pp,omitempty" jsonschema:"Half-width of the attach rate noise in percentage points."`
	ShockASPPct          float64 `json:"shock_asp_pct,omitempty" jsonschema:"Half-width of the ASP noise as a fraction."`
	NoShocks             bool    `json:"no_shocks,omitempty" jsonschema:"If true, the configured default shocks are not applied."`
}

// analyzeArgs extends scenarioArgs with the prompt and the ASP cap.
type analyzeArgs struct {
	Prompt      string  `json:"prompt,omitempty" jsonschema:"The user's question, stored verbatim with the run and echoed in the narrative."`
	PlatformCap float64 `json:"platform_cap,omitempty" jsonschema:"Optional platform share cap as a fraction between 0 and 1. Recorded with the run."`

	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Optional workspace holding the baseline. Defaults to the configured workspace."`
	Region      string `json:"region,omitempty" jsonschema:"Region label, or 'All Regions' (default)."`
	Segment     string `json:"segment,omitempty" jsonschema:"Segment label, or 'All Segments' (default)."`

	DeltaASPUSD       float64 `json:"delta_asp_usd,omitempty" jsonschema:"Change of average selling price in USD. Leave all deltas empty to let the planner size them."`
	DeltaWinRatePP    float64 `json:"delta_win_rate_pp,omitempty" jsonschema:"Change of win rate in percentage points (4 means +4pp)."`
	DeltaAttachRatePP float64 `json:"delta_attach_rate_pp,omitempty" jsonschema:"Change of the secondary (attach) rate in percentage points."`
	DeltaAttachPct    float64 `json:"delta_attach_pct,omitempty" jsonschema:"Attach uplift per unit as a fraction of the attach metric."`
	TargetUSD         float64 `json:"target_usd,omitempty" jsonschema:"ARR target in USD. Options are only evaluated for a positive target."`
	Trials            int     `json:"trials,omitempty" jsonschema:"Number of Monte-Carlo trials. Defaults to the configured trial count."`

	ShockPresentationPct float64 `json:"shock_presentation_pct,omitempty" jsonschema:"Half-width of the presentation rate noise as a fraction."`
	ShockWinRatePP       float64 `json:"shock_win_rate_pp,omitempty" jsonschema:"Half-width of the win rate noise in percentage points."`
	ShockAttachRatePP    float64 `json:"shock_attach_rate_pp,omitempty" jsonschema:"Half-width of the attach rate noise in percentage points."`
	ShockASPPct          float64 `json:"shock_asp_pct,omitempty" jsonschema:"Half-width of the ASP noise as a fraction."`
	NoShocks             bool    `json:"no_shocks,omitempty" jsonschema:"If true, the configured default shocks are not applied."`
}

type planArgs struct {
	WorkspaceID string  `json:"workspace_id,omitempty" jsonschema:"Optional workspace holding the baseline. Defaults to the configured workspace."`
	Region      string  `json:"region,omitempty" jsonschema:"Region label, or 'All Regions' (default)."`
	Segment     string  `json:"segment,omitempty" jsonschema:"Segment label, or 'All Segments' (default)."`
	TargetUSD   float64 `json:"target_usd" jsonschema:"ARR target in USD to allocate across the ASP and win rate levers."`
	PlatformCap float64 `json:"platform_cap,omitempty" jsonschema:"Optional platform share cap as a fraction between 0 and 1. Recorded with the run."`
}

type listRunsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first. 0 returns all."`
}

type getRunArgs struct {
	ID string `json:"id" jsonschema:"The run ID returned by analyze_scenario."`
}

type roadmapArgs struct {
	Goal string `json:"goal" jsonschema:"One of: target_planning, scenario_testing, run_review."`
}

// schemaFor derives an input schema from T. Numeric properties also accept
// strings; the handlers coerce them.
func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("input schema for %T: %v", *new(T), err))
	}
	for _, prop := range schema.Properties {
		if prop.Type == "number" || prop.Type == "integer" {
			prop.Types = []string{prop.Type, "string"}
			prop.Type = ""
		}
	}
	return schema
}

type toolHandler func(ctx context.Context, args map[string]any) (interface{}, error)

func (s *Server) registerTools(server *mcp.Server) {
	s.addTool(server, "simulate_scenario",
		"Run the Monte-Carlo scenario engine over the baseline segments and return the probability of hitting the ARR target with the mean, P10, P50 and P90 delta. \n\n"+
			"Deltas are applied as given; nothing is planned and no run is registered. "+
			"STRICT GUARDRAIL: DO NOT estimate probabilities yourself if this tool fails or selects zero segments; report the error instead.",
		schemaFor[scenarioArgs](), s.handleSimulateScenario)

	s.addTool(server, "plan_target",
		"Allocate an ARR target across the ASP and win rate levers using the sensitivities and headroom of the selected segments. "+
			"Returns the lever changes and any shortfall the levers cannot cover.",
		schemaFor[planArgs](), s.handlePlanTarget)

	s.addTool(server, "analyze_scenario",
		"Answer a planning question end to end: plan the levers (unless deltas are given), simulate, rank the strategic options and return the narrative. \n\n"+
			"Every call is recorded as a run; use 'get_run' to review it later. The prompt is stored as a label only and is not interpreted.",
		schemaFor[analyzeArgs](), s.handleAnalyzeScenario)

	s.addTool(server, "list_segments",
		"List the baseline segment rows of a workspace with their drivers and bounds, optionally filtered by region and segment.",
		schemaFor[filterArgs](), s.handleListSegments)

	s.addTool(server, "list_runs",
		"List recorded analysis runs, newest first.",
		schemaFor[listRunsArgs](), s.handleListRuns)

	s.addTool(server, "get_run",
		"Get one recorded analysis run by ID, including its status, deltas and simulation result.",
		schemaFor[getRunArgs](), s.handleGetRun)

	s.addTool(server, "get_planning_roadmap",
		"Get the recommended sequence of tools for a planning goal.",
		schemaFor[roadmapArgs](), s.handleGetPlanningRoadmap)
}

func (s *Server) addTool(server *mcp.Server, name, description string, schema *jsonschema.Schema, fn toolHandler) {
	tool := &mcp.Tool{Name: name, Description: description, InputSchema: schema}
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		start := time.Now()
		data, err := fn(ctx, args)
		if s.svc != nil {
			s.svc.Metrics.RecordToolCall(name, err)
		}
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, nil, err
		}
		log.Debug().Str("tool", name).Dur("elapsed", time.Since(start)).Msg("Tool call finished")
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: s.formatResult(data)}},
		}, nil, nil
	})
}
