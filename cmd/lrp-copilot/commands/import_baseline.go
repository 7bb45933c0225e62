package commands

import (
	"errors"
	"fmt"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/storage"
	"lrp-copilot/internal/storage/postgres"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	importWorkspace   string
	importName        string
	importDescription string
)

var importBaselineCmd = &cobra.Command{
	Use:   "import-baseline <file>",
	Short: "Load a YAML or JSON baseline into a Postgres workspace",
	Long: `Reads a baseline file and replaces the segment rows of the workspace with it.
The workspace is created on first import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errNoDatabase
		}
		doc, err := baseline.LoadFile(args[0])
		if err != nil {
			return err
		}

		workspaceID := importWorkspace
		if workspaceID == "" {
			workspaceID = cfg.WorkspaceID
		}
		name := importName
		if name == "" {
			name = doc.Name
		}
		if name == "" {
			name = workspaceID
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		ws := &storage.Workspace{ID: workspaceID, Name: name, Description: importDescription}
		err = postgres.NewWorkspaceStore(pool).Create(ctx, ws)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			log.Info().Str("workspace", workspaceID).Msg("Workspace exists, replacing its baseline")
		case err != nil:
			return err
		}

		if err := postgres.NewSegmentStore(pool).ReplaceBaseline(ctx, workspaceID, doc.Segments); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d segments into workspace %q.\n", len(doc.Segments), workspaceID)
		return nil
	},
}

func init() {
	importBaselineCmd.Flags().StringVar(&importWorkspace, "workspace", "", "target workspace (default: WORKSPACE_ID)")
	importBaselineCmd.Flags().StringVar(&importName, "name", "", "workspace name (default: the baseline name)")
	importBaselineCmd.Flags().StringVar(&importDescription, "description", "", "workspace description")
	rootCmd.AddCommand(importBaselineCmd)
}
