package commands

import (
	"errors"
	"fmt"

	"lrp-copilot/internal/storage/migrations"
	"lrp-copilot/internal/storage/postgres"

	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
