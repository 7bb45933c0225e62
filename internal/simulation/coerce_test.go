package simulation

import (
	"encoding/json"
	"math"
	"testing"

	"lrp-copilot/internal/baseline"
)

func TestNum(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected float64
	}{
		{"Nil", nil, 0},
		{"EmptyString", "", 0},
		{"Blank", "   ", 0},
		{"Garbage", "ten", 0},
		{"NumericString", " 12.5 ", 12.5},
		{"Float", 3.25, 3.25},
		{"Int", 7, 7},
		{"BoolTrue", true, 1},
		{"JSONNumber", json.Number("42"), 42},
		{"NaN", math.NaN(), 0},
		{"Inf", math.Inf(1), 0},
		{"Slice", []int{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Num(tt.in); got != tt.expected {
				t.Errorf("Num(%v) = %v, want %v", tt.in, got, tt.expected)
			}
		})
	}
}

func TestTrialCount(t *testing.T) {
	tests := []struct {
		in       any
		expected int
	}{
		{nil, DefaultTrials},
		{"", DefaultTrials},
		{"abc", DefaultTrials},
		{0, DefaultTrials},
		{-10, DefaultTrials},
		{1, 1},
		{2500.9, 2500},
		{"300", 300},
	}
	for _, tt := range tests {
		if got := TrialCount(tt.in); got != tt.expected {
			t.Errorf("TrialCount(%v) = %d, want %d", tt.in, got, tt.expected)
		}
	}
}

func TestRequestFromArgs(t *testing.T) {
	req := RequestFromArgs(map[string]any{
		"region":            "EMEA",
		"delta_asp_usd":     "25000",
		"delta_win_rate_pp": 4.0,
		"target_usd":        nil,
		"trials":            "n/a",
		"shock_asp_pct":     0.05,
	})

	if req.Region != "EMEA" || req.Segment != baseline.AllSegments {
		t.Errorf("Unexpected filters: %q / %q", req.Region, req.Segment)
	}
	if req.DeltaASPUSD != 25000 || req.DeltaWinRatePP != 4 {
		t.Errorf("Unexpected deltas: %+v", req)
	}
	if req.TargetUSD != 0 {
		t.Errorf("Expected nil target to coerce to 0, got %v", req.TargetUSD)
	}
	if req.Trials != DefaultTrials {
		t.Errorf("Expected default trials, got %d", req.Trials)
	}
	if req.ASPPct != 0.05 {
		t.Errorf("Expected ASP shock 0.05, got %v", req.ASPPct)
	}

	empty := RequestFromArgs(nil)
	if empty.Region != baseline.AllRegions || empty.Trials != DefaultTrials {
		t.Errorf("Unexpected defaults for empty args: %+v", empty)
	}
}
