package main

import (
	"github.com/spf13/cobra"

	"henry/internal/audit"
	"henry/internal/report"
	"henry/internal/vacuum"
)

// reportFlags are the scope, window and ordering flags of a report command.
type reportFlags struct {
	project    string
	model      string
	explore    string
	timeframe  int
	minQueries int
	sortKey    string
	desc       bool
	limit      int
	exclude    []string
}

// scopeFlags selects which scope flags a report command accepts.
type scopeFlags struct {
	project bool
	model   bool
	explore bool
	window  bool
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize projects, models, explores or fields",
		Long: `Summarize the semantic layer at one level.

Examples:
  henry analyze projects
  henry analyze models --project ecommerce
  henry analyze explores --model sales --sortkey query_count --desc --limit 10
  henry analyze fields --model sales --explore orders --format json`,
	}
	cmd.AddCommand(
		newReportCmd(g, report.AnalyzeProjects, "Project file counts and git connection status",
			scopeFlags{project: true}),
		newReportCmd(g, report.AnalyzeModels, "Explore counts and query runs per model",
			scopeFlags{project: true, model: true, window: true}),
		newReportCmd(g, report.AnalyzeExplores, "Join and field usage per explore",
			scopeFlags{model: true, explore: true, window: true}),
		newReportCmd(g, report.AnalyzeFields, "Field counts and missing descriptions per explore",
			scopeFlags{model: true, explore: true, window: true}),
	)
	return cmd
}

func newVacuumCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "List unused models, explores or fields",
		Long: `List semantic-layer elements with no queries in the history window.

Examples:
  henry vacuum models --project ecommerce
  henry vacuum explores --model sales --timeframe 30
  henry vacuum fields --model sales --exclude 'orders.*_raw'`,
	}
	cmd.AddCommand(
		newReportCmd(g, report.VacuumModels, "Explores of each model nobody queried",
			scopeFlags{project: true, model: true, window: true}),
		newReportCmd(g, report.VacuumExplores, "Unused joins and fields of each explore",
			scopeFlags{model: true, explore: true, window: true}),
		newReportCmd(g, report.VacuumFields, "Unused fields grouped by view",
			scopeFlags{model: true, explore: true, window: true}),
	)
	return cmd
}

// newReportCmd builds the subcommand rendering one report kind.
func newReportCmd(g *globalFlags, kind report.Kind, short string, scope scopeFlags) *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:   kind.Subject(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, g, kind, f)
		},
	}

	flags := cmd.Flags()
	if scope.project {
		flags.StringVar(&f.project, "project", "", "Restrict to one project")
	}
	if scope.model {
		flags.StringVar(&f.model, "model", "", "Restrict to one model")
	}
	if scope.explore {
		flags.StringVar(&f.explore, "explore", "", "Restrict to one explore (requires --model)")
	}
	if scope.window {
		flags.IntVar(&f.timeframe, "timeframe", 0, "History window in days (default: usage.timeframeDays)")
		flags.IntVar(&f.minQueries, "min-queries", 0, "Ignore history rows with fewer runs (default: usage.minQueries)")
	}
	if kind.Sortable() {
		flags.StringVar(&f.sortKey, "sortkey", "", "Sort by this column")
		flags.BoolVar(&f.desc, "desc", false, "Sort descending")
		flags.IntVar(&f.limit, "limit", 0, "Keep only the first n rows")
	}
	if kind == report.VacuumFields {
		flags.StringSliceVar(&f.exclude, "exclude", nil, "view.field globs to leave out of the report")
	}
	return cmd
}

func runReport(cmd *cobra.Command, g *globalFlags, kind report.Kind, f *reportFlags) error {
	s, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	opts := audit.Options{
		Project:       f.project,
		Model:         f.model,
		Explore:       f.explore,
		TimeframeDays: s.cfg.Usage.TimeframeDays,
		MinRunCount:   s.cfg.Usage.MinQueries,
		SortKey:       f.sortKey,
		Descending:    f.desc,
		Limit:         f.limit,
	}
	if cmd.Flags().Changed("timeframe") {
		opts.TimeframeDays = f.timeframe
	}
	if cmd.Flags().Changed("min-queries") {
		opts.MinRunCount = f.minQueries
	}

	analyzer := vacuum.NewAnalyzer(s.logger, f.exclude)
	auditor := audit.NewAuditor(s.source, analyzer, s.logger, s.cfg.Concurrency.Workers)
	r, err := auditor.Run(cmd.Context(), kind, opts)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), r, s.format)
}
