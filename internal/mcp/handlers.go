package mcp

import (
	"context"
	"fmt"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/copilot"
	"lrp-copilot/internal/simulation"
	"lrp-copilot/internal/visuals"
)

func (s *Server) handleSimulateScenario(ctx context.Context, args map[string]any) (interface{}, error) {
	q := copilot.QueryFromArgs(args)
	res, err := s.svc.Simulate(ctx, q)
	if err != nil {
		return nil, err
	}

	warnings := scenarioWarnings(res)
	var charts []string
	if s.cfg.EnableMermaidCharts {
		charts = appendChart(charts, visuals.GeneratePercentileChart(res, q.TargetUSD))
		charts = appendChart(charts, visuals.GenerateDistributionChart(res.Histogram))
	}

	// Histograms are rendered as charts, never returned raw.
	res.Histogram = nil
	return WrapResponse(res, scenarioContext(q), warnings, charts, nil), nil
}

func (s *Server) handlePlanTarget(ctx context.Context, args map[string]any) (interface{}, error) {
	q := copilot.QueryFromArgs(args)
	if q.TargetUSD <= 0 {
		return nil, fmt.Errorf("target_usd must be positive, got %v", args["target_usd"])
	}
	plan, err := s.svc.Plan(ctx, q)
	if err != nil {
		return nil, err
	}

	var guidance []string
	if plan.ShortfallUSD > 0 {
		guidance = append(guidance, fmt.Sprintf("The ASP and win rate levers cannot cover %.0f USD of the target within their bounds. Consider the attach levers or a lower target.", plan.ShortfallUSD))
	}
	guidance = append(guidance, "Call 'analyze_scenario' with the same target to simulate this plan and rank the strategic options.")
	return WrapResponse(plan, scenarioContext(q), nil, nil, guidance), nil
}

func (s *Server) handleAnalyzeScenario(ctx context.Context, args map[string]any) (interface{}, error) {
	q := copilot.QueryFromArgs(args)
	a, err := s.svc.Analyze(ctx, q)
	if err != nil {
		return nil, err
	}

	warnings := scenarioWarnings(a.Result)
	var charts []string
	if s.cfg.EnableMermaidCharts {
		charts = appendChart(charts, visuals.GeneratePercentileChart(a.Result, a.Request.TargetUSD))
		charts = appendChart(charts, visuals.GenerateOptionsChart(a.Options))
	}

	a.Result.Histogram = nil
	for i := range a.Options {
		a.Options[i].Result.Histogram = nil
	}
	if a.Recommended != nil {
		a.Recommended.Result.Histogram = nil
	}

	var guidance []string
	if a.RunID != "" {
		guidance = append(guidance, fmt.Sprintf("This analysis was recorded as run %s (%s). Use 'get_run' to review it.", a.RunLabel, a.RunID))
	}
	return WrapResponse(a, scenarioContext(copilot.Query{Request: a.Request, WorkspaceID: q.WorkspaceID}), warnings, charts, guidance), nil
}

func (s *Server) handleListSegments(ctx context.Context, args map[string]any) (interface{}, error) {
	workspaceID := asString(args["workspace_id"])
	table, err := s.svc.Table(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	f := baseline.Filter{
		Region:  simulation.Label(args["region"], baseline.AllRegions),
		Segment: simulation.Label(args["segment"], baseline.AllSegments),
	}
	rows := table.Select(f)

	res := map[string]interface{}{
		"regions":     table.Regions(),
		"segments":    table.Segments(),
		"rows":        rows,
		"row_count":   len(rows),
		"revenue_usd": rows.Revenue(),
	}

	var warnings []string
	if err := table.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("BASELINE WARNING: %v", err))
	}
	return WrapResponse(res, map[string]interface{}{"workspace_id": workspaceID, "region": f.Region, "segment": f.Segment}, warnings, nil, nil), nil
}

func (s *Server) handleListRuns(ctx context.Context, args map[string]any) (interface{}, error) {
	limit := int(simulation.Num(args["limit"]))
	list, err := s.svc.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return WrapResponse(map[string]interface{}{"runs": list, "count": len(list)}, nil, nil, nil, nil), nil
}

func (s *Server) handleGetRun(ctx context.Context, args map[string]any) (interface{}, error) {
	id := asString(args["id"])
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	run, err := s.svc.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	return WrapResponse(run, nil, nil, nil, nil), nil
}

func (s *Server) handleGetPlanningRoadmap(_ context.Context, args map[string]any) (interface{}, error) {
	roadmaps := map[string]interface{}{
		"target_planning": map[string]interface{}{
			"title":       "Analytical Workflow: Target Planning",
			"description": "Recommended sequence to size the levers for an ARR target and judge how likely it is.",
			"steps": []interface{}{
				map[string]interface{}{"step": 1, "tool": "list_segments", "description": "Confirm the region and segment labels and check the baseline bounds."},
				map[string]interface{}{"step": 2, "tool": "plan_target", "description": "Allocate the target across ASP and win rate and check for a shortfall."},
				map[string]interface{}{"step": 3, "tool": "analyze_scenario", "description": "Simulate the plan and rank the strategic options by feasibility."},
			},
		},
		"scenario_testing": map[string]interface{}{
			"title":       "Analytical Workflow: Scenario Testing",
			"description": "Recommended sequence to test explicit lever changes under uncertainty.",
			"steps": []interface{}{
				map[string]interface{}{"step": 1, "tool": "list_segments", "description": "Select the segments the scenario applies to."},
				map[string]interface{}{"step": 2, "tool": "simulate_scenario", "description": "Simulate the deltas with the default shocks and compare P10, P50 and P90."},
				map[string]interface{}{"step": 3, "tool": "simulate_scenario", "description": "Repeat with no_shocks to separate the lever effect from the noise."},
			},
		},
		"run_review": map[string]interface{}{
			"title":       "Analytical Workflow: Run Review",
			"description": "Recommended sequence to audit past analyses.",
			"steps": []interface{}{
				map[string]interface{}{"step": 1, "tool": "list_runs", "description": "Find recent runs and their status."},
				map[string]interface{}{"step": 2, "tool": "get_run", "description": "Inspect the deltas, result and notes of one run."},
			},
		},
	}

	goal := asString(args["goal"])
	res, ok := roadmaps[goal]
	if !ok {
		return nil, fmt.Errorf("unknown goal: %s. Available goals: target_planning, scenario_testing, run_review", goal)
	}

	return WrapResponse(res, nil, nil, nil, nil), nil
}
