package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/legacy"
	"loom/internal/pipeline"
)

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Plan and run document conversions",
	}

	pipelineCmd.AddCommand(newPipelinePlanCommand(ctx))
	pipelineCmd.AddCommand(newPipelineRunCommand(ctx))

	return pipelineCmd
}

func newPipelinePlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <project-id>",
		Short: "Show the pending conversion work for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			plan, err := pipeline.NewPlanner(st, logger).BuildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if plan.LegacyConversions > 0 {
				fmt.Fprintf(out, "Note: %d legacy conversion row(s); run 'loom bridge %s' first\n\n",
					plan.LegacyConversions, args[0])
			}
			printIntegrityAlerts(cmd, plan)
			if len(plan.Tasks) == 0 {
				fmt.Fprintln(out, "Nothing to do")
				return nil
			}

			rows := make([][]string, 0, len(plan.Tasks))
			for _, task := range plan.Tasks {
				rows = append(rows, []string{
					task.FileName,
					task.SrcLang + " > " + task.TrgLang,
					task.XLIFFRel,
					task.JLIFFRel,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Pair", "XLIFF", "JLIFF"}, rows))
			return nil
		},
	}
}

func newPipelineRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <project-id>",
		Short: "Execute the pending conversion work for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			planner := pipeline.NewPlanner(st, logger)
			plan, err := planner.BuildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			// Databases from the previous implementation get bridged
			// before any new work is scheduled.
			if plan.LegacyConversions > 0 {
				outcome, err := legacy.NewBridge(st, logger).Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Bridged %d legacy conversion(s): %d pair(s), %d target(s), %d artifact(s)\n",
					outcome.Conversions, outcome.PairsCreated, outcome.TargetsCreated, outcome.ArtifactsCreated)
				plan, err = planner.BuildPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			}
			printIntegrityAlerts(cmd, plan)

			runner := pipeline.NewRunner(st,
				pipeline.NewCommandExtractor(cfg.Tools, logger),
				pipeline.NewCommandConverter(cfg.Tools, logger),
				logger)
			summary, err := runner.Run(cmd.Context(), plan)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Extracted %d, converted %d, failed %d\n",
				summary.Extracted, summary.Converted, summary.Failed)
			if summary.ValidationsFailed > 0 {
				fmt.Fprintf(out, "%d artifact(s) failed validation\n", summary.ValidationsFailed)
			}
			return nil
		},
	}
}

func printIntegrityAlerts(cmd *cobra.Command, plan *pipeline.Plan) {
	out := cmd.OutOrStdout()
	for _, alert := range plan.IntegrityAlerts {
		if alert.ActualHash == "" {
			fmt.Fprintf(out, "Warning: file %s is unreadable and was marked MISSING\n", alert.FileID)
			continue
		}
		fmt.Fprintf(out, "Warning: file %s content does not match its recorded hash\n", alert.FileID)
	}
	for _, name := range plan.SkippedFiles {
		fmt.Fprintf(out, "Skipped: %s\n", name)
	}
}
