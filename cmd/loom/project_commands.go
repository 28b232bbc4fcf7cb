package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/project"
	"loom/internal/staging"
	"loom/internal/store"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectRemoveFileCommand(ctx))
	projectCmd.AddCommand(newProjectArchiveCommand(ctx))
	projectCmd.AddCommand(newProjectCleanStagingCommand(ctx))

	return projectCmd
}

func (c *commandContext) projectService() (*project.Service, error) {
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return project.NewService(st, cfg, logger), nil
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var pairFlags []string
	var projectType string

	cmd := &cobra.Command{
		Use:   "create <name> <file>...",
		Short: "Create a project and import files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			svc, err := ctx.projectService()
			if err != nil {
				return err
			}

			pairs, err := parsePairFlags(pairFlags)
			if err != nil {
				return err
			}
			parsedType, err := store.ParseProjectType(projectType)
			if err != nil {
				return err
			}

			created, err := svc.CreateStaged(cmd.Context(), project.CreateRequest{
				Name:      args[0],
				Type:      parsedType,
				Pairs:     pairs,
				FilePaths: args[1:],
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created project %s (%s)\n", created.Project.Name, created.Project.ID)
			fmt.Fprintf(out, "Root: %s\n", created.Project.RootPath)
			fmt.Fprintf(out, "Imported %d file(s), %d conversion target(s)\n",
				len(created.Files), len(created.Targets))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&pairFlags, "pair", "p", nil,
		"Language pair as src:trg (repeatable); defaults come from configuration")
	cmd.Flags().StringVar(&projectType, "type", string(store.ProjectTypeTranslation),
		"Project type (translation or rag)")
	return cmd
}

func parsePairFlags(flags []string) ([]store.PairSeed, error) {
	pairs := make([]store.PairSeed, 0, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid pair %q, expected src:trg", flag)
		}
		pairs = append(pairs, store.PairSeed{SrcLang: parts[0], TrgLang: parts[1]})
	}
	return pairs, nil
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.projectService()
			if err != nil {
				return err
			}
			projects, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects")
				return nil
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				pairText := ""
				if p.DefaultSrcLang != "" {
					pairText = p.DefaultSrcLang + " > " + p.DefaultTrgLang
				}
				rows = append(rows, []string{
					p.ID,
					p.Name,
					string(p.LifecycleStatus),
					string(p.Status),
					pairText,
					p.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Lifecycle", "Status", "Default Pair", "Created"}, rows))
			return nil
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's files, targets, artifacts, and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.projectService()
			if err != nil {
				return err
			}
			snap, err := svc.Details(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", snap.Project.Name, snap.Project.ID)
			fmt.Fprintf(out, "Lifecycle: %s  Root: %s\n\n", snap.Project.LifecycleStatus, snap.Project.RootPath)

			pairRows := make([][]string, 0, len(snap.Pairs))
			for _, pair := range snap.Pairs {
				pairRows = append(pairRows, []string{pair.SrcLang, pair.TrgLang})
			}
			fmt.Fprintln(out, renderTable([]string{"Source", "Target"}, pairRows))

			fileRows := make([][]string, 0, len(snap.Files))
			for _, file := range snap.Files {
				fileRows = append(fileRows, []string{
					file.ID,
					file.OriginalName,
					string(file.StorageState),
					fmt.Sprintf("%d", file.SizeBytes),
					shortHash(file.HashSHA256),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File ID", "Name", "Storage", "Bytes", "SHA-256"}, fileRows, 3))

			targetRows := make([][]string, 0, len(snap.Targets))
			for _, target := range snap.Targets {
				targetRows = append(targetRows, []string{target.ID, target.FileID, string(target.Status)})
			}
			fmt.Fprintln(out, renderTable([]string{"Target ID", "File ID", "Status"}, targetRows))

			if len(snap.Artifacts) > 0 {
				artifactRows := make([][]string, 0, len(snap.Artifacts))
				for _, artifact := range snap.Artifacts {
					artifactRows = append(artifactRows, []string{
						string(artifact.Kind),
						artifact.RelPath,
						string(artifact.Status),
						fmt.Sprintf("%d", artifact.SizeBytes),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Kind", "Path", "Status", "Bytes"}, artifactRows, 3))
			}

			if len(snap.Jobs) > 0 {
				jobRows := make([][]string, 0, len(snap.Jobs))
				for _, job := range snap.Jobs {
					jobRows = append(jobRows, []string{
						string(job.Type),
						string(job.State),
						fmt.Sprintf("%d", job.Attempts),
						job.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "State", "Attempts", "Error"}, jobRows, 2))
			}
			return nil
		},
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func newProjectRemoveFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-file <project-id> <file-id>",
		Short: "Remove a file and its derived artifacts from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			svc, err := ctx.projectService()
			if err != nil {
				return err
			}
			if err := svc.RemoveFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed file %s\n", args[1])
			return nil
		},
	}
}

func newProjectCleanStagingCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "clean-staging",
		Short: "Remove stale staging directories left by crashed creations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
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

			result := staging.CleanStale(cfg.Paths.ProjectsDir, time.Duration(maxAgeHours)*time.Hour, logger)

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No stale staging directories")
				return nil
			}
			fmt.Fprintf(out, "Removed %d staging directories\n", len(result.Removed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age-hours", 24,
		"Only remove staging directories older than this many hours")
	return cmd
}

func newProjectArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <project-id>",
		Short: "Archive a project, freeing its name for reuse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.acquireLock(); err != nil {
				return err
			}
			svc, err := ctx.projectService()
			if err != nil {
				return err
			}
			if err := svc.Archive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived project %s\n", args[0])
			return nil
		},
	}
}
