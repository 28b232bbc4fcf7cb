package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/legacy"
)

func newBridgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bridge <project-id>",
		Short: "Derive pairs, targets, and artifacts from legacy conversion rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			outcome, err := legacy.NewBridge(st, logger).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Bridged %d conversion(s): created %d pair(s), %d target(s), %d artifact(s); skipped %d\n",
				outcome.Conversions, outcome.PairsCreated, outcome.TargetsCreated,
				outcome.ArtifactsCreated, outcome.Skipped)
			return nil
		},
	}
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index <project-id>",
		Short: "Register artifact files found on disk without a database row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			outcome, err := legacy.NewIndexer(st, logger).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Scanned %d file(s): registered %d, orphaned %d\n",
				outcome.Scanned, outcome.Registered, outcome.Orphaned)
			return nil
		},
	}
}
