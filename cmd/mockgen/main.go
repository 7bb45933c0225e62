package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"lrp-copilot/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, wide, tight")
	out := flag.String("out", "./data/baseline.yaml", "Output baseline file")
	seed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Seed:     *seed,
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	fmt.Printf("Generating scenario '%s' (Seed: %d) to %s...\n", cfg.Scenario, cfg.Seed, *out)

	doc, err := engine.Generate(cfg)
	if err != nil {
		fmt.Printf("Failed to generate baseline: %v\n", err)
		os.Exit(1)
	}

	if err := engine.Save(*out, doc); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %d segments written.\n", len(doc.Segments))
}
