package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"henry/internal/errors"
	"henry/internal/snapshot"
)

type exportFlags struct {
	out        string
	project    string
	model      string
	timeframe  int
	minQueries int
	gitTests   bool
}

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture metadata and query history for offline audits",
	}
	cmd.AddCommand(newSnapshotExportCmd(g))
	return cmd
}

func newSnapshotExportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot file",
		Long: `Capture projects, models, explores and query history into a snapshot file.
The extension picks the format: .yaml, .yml, .toml or .json, optionally
followed by .zst or .gz for compression.

Replay it later with --snapshot:
  henry snapshot export --out sales.yaml.zst --model sales
  henry --snapshot sales.yaml.zst vacuum fields`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotExport(cmd, g, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.out, "out", "", "Snapshot file to write (required)")
	flags.StringVar(&f.project, "project", "", "Restrict to one project")
	flags.StringVar(&f.model, "model", "", "Restrict to one model")
	flags.IntVar(&f.timeframe, "timeframe", 0, "History window in days (default: usage.timeframeDays)")
	flags.IntVar(&f.minQueries, "min-queries", 0, "Ignore history rows with fewer runs (default: usage.minQueries)")
	flags.BoolVar(&f.gitTests, "git-tests", false, "Run and record each project's git connection tests")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runSnapshotExport(cmd *cobra.Command, g *globalFlags, f *exportFlags) error {
	if _, _, err := snapshot.DetectFormat(f.out); err != nil {
		return err
	}

	s, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	window := snapshot.Window{
		TimeframeDays: s.cfg.Usage.TimeframeDays,
		MinRunCount:   s.cfg.Usage.MinQueries,
	}
	if cmd.Flags().Changed("timeframe") {
		window.TimeframeDays = f.timeframe
	}
	if cmd.Flags().Changed("min-queries") {
		window.MinRunCount = f.minQueries
	}
	if window.TimeframeDays <= 0 {
		return errors.Newf(errors.ScopeInvalid, "timeframe must be positive, got %d days", window.TimeframeDays)
	}

	snap, err := snapshot.Export(cmd.Context(), s.source, snapshot.ExportOptions{
		Project:  f.project,
		Model:    f.model,
		Window:   window,
		GitTests: f.gitTests,
		Workers:  s.cfg.Concurrency.Workers,
	}, s.logger)
	if err != nil {
		return err
	}
	if err := snap.Save(f.out); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote snapshot %s to %s (%d models, %d explores, %d history rows)\n",
		snap.ID, f.out, len(snap.Models), len(snap.Explores), len(snap.History))
	return err
}
