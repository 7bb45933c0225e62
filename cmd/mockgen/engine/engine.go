package engine

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"lrp-copilot/internal/baseline"
)

type GeneratorConfig struct {
	Scenario string // "mild", "wide" or "tight"
	Seed     int64
}

var (
	regions = []struct {
		Region  string
		Country string
	}{
		{"AMER", "US"},
		{"EMEA", "DE"},
		{"APAC", "JP"},
		{"LATAM", "BR"},
	}

	segments = []struct {
		Segment string
		ASP     float64 // typical ASP in USD
		Units   float64 // installed units carrying attach
	}{
		{"SMB", 60000, 400},
		{"MM", 180000, 150},
		{"ENT", 450000, 40},
	}
)

// Generate builds a synthetic baseline of every region x segment pair.
func Generate(cfg GeneratorConfig) (*baseline.Document, error) {
	// headroom is the relative distance from each driver to its upper bound
	var headroom, spread float64
	switch cfg.Scenario {
	case "", "mild":
		headroom, spread = 0.25, 0.15
	case "wide":
		headroom, spread = 0.6, 0.4
	case "tight":
		headroom, spread = 0.03, 0.05
	default:
		return nil, fmt.Errorf("unknown scenario %q (want mild, wide or tight)", cfg.Scenario)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	jitter := func(x float64) float64 {
		return x * (1 + (rng.Float64()*2-1)*spread)
	}

	doc := &baseline.Document{
		Name:     fmt.Sprintf("Synthetic baseline (%s)", cfg.Scenario),
		Currency: "USD",
	}
	for _, r := range regions {
		for _, s := range segments {
			win := clampRate(jitter(0.22))
			attach := clampRate(jitter(0.45))
			asp := round(jitter(s.ASP), 100)

			doc.Segments = append(doc.Segments, baseline.Segment{
				Country:          r.Country,
				Region:           r.Region,
				Segment:          s.Segment,
				Stream:           "New Business",
				PresentationRate: clampRate(jitter(0.35)),
				WinRate:          win,
				ASPUSD:           asp,
				AttachRate:       attach,
				AttachARR:        round(jitter(s.ASP*0.08), 10),
				UnitCount:        math.Round(jitter(s.Units)),
				WinRateBounds:    rateBounds(win, headroom),
				AttachRateBounds: rateBounds(attach, headroom),
				ASPBounds:        &baseline.Bounds{Min: round(asp*0.5, 100), Max: round(asp*(1+headroom), 100)},
			})
		}
	}
	return doc, nil
}

func rateBounds(x, headroom float64) *baseline.Bounds {
	return baseline.NewBounds(0, math.Min(1, x*(1+headroom)))
}

func clampRate(x float64) float64 {
	return math.Max(0.01, math.Min(0.99, x))
}

func round(x, step float64) float64 {
	return math.Round(x/step) * step
}

// Save writes the document as YAML, creating the parent directory.
func Save(path string, doc *baseline.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return baseline.SaveFile(path, doc)
}
