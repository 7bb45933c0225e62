package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lrp-copilot/internal/config"
	"lrp-copilot/internal/logging"
	"lrp-copilot/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "lrp-copilot",
	Short: "LRP Copilot is a Monte-Carlo scenario planner for long-range revenue plans",
	Long: `A long-range-planning copilot that sizes revenue levers for an ARR target,
simulates the scenario under uncertainty and ranks the strategic options.
Without a subcommand it serves the tools over MCP on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logPath, err := logging.Init(verbose)
		if err != nil {
			return err
		}

		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("logFile", logPath).
			Msg("LRP Copilot starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcp.NewServer(cfg, a.svc).Serve(ctx)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
