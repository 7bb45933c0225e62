package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"lrp-copilot/internal/copilot"
	"lrp-copilot/internal/deltas"
	"lrp-copilot/internal/simulation"

	"github.com/spf13/cobra"
)

// scenarioFlags binds the query flags shared by simulate, plan and report.
type scenarioFlags struct {
	prompt      string
	workspace   string
	region      string
	segment     string
	deltaASP    float64
	deltaWin    float64
	deltaAttach float64
	attachPct   float64
	target      float64
	trials      int
	platformCap float64
	noShocks    bool
	asJSON      bool
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.workspace, "workspace", "", "workspace holding the baseline (default: WORKSPACE_ID)")
	fs.StringVar(&f.region, "region", "", "region filter (default: all regions)")
	fs.StringVar(&f.segment, "segment", "", "segment filter (default: all segments)")
	fs.Float64Var(&f.deltaASP, "delta-asp", 0, "ASP change in USD")
	fs.Float64Var(&f.deltaWin, "delta-win-pp", 0, "win rate change in percentage points")
	fs.Float64Var(&f.deltaAttach, "delta-attach-pp", 0, "attach rate change in percentage points")
	fs.Float64Var(&f.attachPct, "delta-attach-pct", 0, "attach uplift per unit as a fraction")
	fs.Float64Var(&f.target, "target", 0, "ARR target in USD")
	fs.IntVar(&f.trials, "trials", 0, "Monte-Carlo trials (default: MC_TRIALS)")
	fs.Float64Var(&f.platformCap, "platform-cap", -1, "platform share cap as a fraction (negative: unset)")
	fs.BoolVar(&f.noShocks, "no-shocks", false, "disable the default shocks")
	fs.BoolVar(&f.asJSON, "json", false, "print JSON instead of text")
}

func (f *scenarioFlags) query() copilot.Query {
	q := copilot.Query{
		Request: simulation.Request{
			Region:            f.region,
			Segment:           f.segment,
			DeltaASPUSD:       f.deltaASP,
			DeltaWinRatePP:    f.deltaWin,
			DeltaAttachRatePP: f.deltaAttach,
			DeltaAttachPct:    f.attachPct,
			TargetUSD:         f.target,
			Trials:            f.trials,
		},
		Prompt:      f.prompt,
		WorkspaceID: f.workspace,
		NoShocks:    f.noShocks,
	}
	if f.platformCap >= 0 {
		c := f.platformCap
		q.PlatformCap = &c
	}
	return q
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res simulation.Result, target float64) {
	fmt.Fprintf(w, "Trials:          %d (segments: %d)\n", res.Trials, res.Segments)
	fmt.Fprintf(w, "P(delta >= %s): %s\n", deltas.FormatUSD(target), deltas.FormatPercent(res.ProbabilityOfHit))
	fmt.Fprintf(w, "Mean delta:      %s\n", deltas.FormatUSD(res.MeanDelta))
	fmt.Fprintf(w, "P10 / P50 / P90: %s / %s / %s\n", deltas.FormatUSD(res.P10), deltas.FormatUSD(res.P50), deltas.FormatUSD(res.P90))
	if res.Truncated {
		fmt.Fprintln(w, "Interrupted before all trials completed.")
	}
	for _, insight := range res.Insights {
		fmt.Fprintf(w, "- %s\n", insight)
	}
}

var simulateFlags scenarioFlags

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the Monte-Carlo engine for explicit lever changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		q := simulateFlags.query()
		res, err := a.svc.Simulate(ctx, q)
		if err != nil {
			return err
		}
		if simulateFlags.asJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printResult(cmd.OutOrStdout(), res, q.TargetUSD)
		return nil
	},
}

var planFlags scenarioFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Allocate an ARR target across the ASP and win rate levers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planFlags.target <= 0 {
			return fmt.Errorf("--target must be positive")
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.svc.Plan(ctx, planFlags.query())
		if err != nil {
			return err
		}
		if planFlags.asJSON {
			return printJSON(cmd.OutOrStdout(), plan)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Target:     %s (%s / %s)\n", deltas.FormatUSD(plan.TargetUSD), plan.Region, plan.Segment)
		fmt.Fprintf(w, "ASP:        %+.0f USD (delivers %s)\n", plan.DeltaASPUSD, deltas.FormatUSD(plan.WantASP))
		fmt.Fprintf(w, "Win rate:   %+.2f pp (delivers %s)\n", plan.DeltaWinRatePP, deltas.FormatUSD(plan.WantWin))
		if plan.ShortfallUSD > 0 {
			fmt.Fprintf(w, "Shortfall:  %s beyond lever headroom\n", deltas.FormatUSD(plan.ShortfallUSD))
		}
		return nil
	},
}

func init() {
	simulateFlags.register(simulateCmd)
	planFlags.register(planCmd)
	rootCmd.AddCommand(simulateCmd, planCmd)
}
