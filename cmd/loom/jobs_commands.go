package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs that are pending or failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			jobs, err := st.ListJobsNeedingAttention(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs need attention")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ProjectID,
					string(job.Type),
					string(job.State),
					fmt.Sprintf("%d", job.Attempts),
					job.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Project", "Job", "State", "Attempts", "Error"}, rows, 3))
			return nil
		},
	}
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <project-id>",
		Short: "Verify the content hashes of a project's files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			files, err := st.ListFiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			mismatches := 0
			for _, file := range files {
				report, err := st.VerifyFileIntegrity(cmd.Context(), file.ID)
				if err != nil {
					mismatches++
					fmt.Fprintf(out, "%-40s unreadable: %v\n", file.OriginalName, err)
					continue
				}
				if report.OK {
					fmt.Fprintf(out, "%-40s ok\n", file.OriginalName)
					continue
				}
				mismatches++
				fmt.Fprintf(out, "%-40s MISMATCH (expected %s, got %s)\n",
					file.OriginalName, shortHash(report.ExpectedHash), shortHash(report.ActualHash))
			}
			if mismatches > 0 {
				return fmt.Errorf("%d file(s) failed verification", mismatches)
			}
			return nil
		},
	}
}
