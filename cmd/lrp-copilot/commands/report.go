package commands

import (
	"fmt"
	"path/filepath"

	"lrp-copilot/internal/visuals"

	"github.com/spf13/cobra"
)

var (
	reportFlags scenarioFlags
	reportDir   string
	reportOpen  bool
)

var reportCmd = &cobra.Command{
	Use:   "report [prompt]",
	Short: "Analyze a scenario and write an HTML report",
	Long: `Runs a full analysis (plan, simulation, strategic options), records the run
and renders the narrative with its charts to a standalone HTML file.
The prompt is stored with the run as a label; it is not interpreted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			reportFlags.prompt = args[0]
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		analysis, err := a.svc.Analyze(ctx, reportFlags.query())
		if err != nil {
			return err
		}
		if reportFlags.asJSON {
			return printJSON(cmd.OutOrStdout(), analysis)
		}

		dir := reportDir
		if dir == "" {
			dir = filepath.Join(cfg.DataPath, "reports")
		}
		path, err := visuals.WriteReport(dir, analysis)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), analysis.Narrative)
		fmt.Fprintf(cmd.OutOrStdout(), "\nReport: %s\n", path)
		if reportOpen {
			return visuals.OpenReport(path)
		}
		return nil
	},
}

func init() {
	reportFlags.register(reportCmd)
	reportCmd.Flags().StringVar(&reportDir, "out", "", "report directory (default: DATA_PATH/reports)")
	reportCmd.Flags().BoolVar(&reportOpen, "open", false, "open the report in the default browser")
	rootCmd.AddCommand(reportCmd)
}
