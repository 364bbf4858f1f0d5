package main

import (
	"github.com/spf13/cobra"

	"henry/internal/errors"
	"henry/internal/version"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath   string
	snapshotPath string
	format       string
	workers      int
	verbosity    int
	quiet        bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "henry",
		Short: "henry - semantic-layer usage auditor",
		Long: `henry inspects the models, explores and fields of a BI semantic layer and
compares them with the query history to find what nobody uses.

Reports come in two families: "analyze" summarizes projects, models, explores
and fields; "vacuum" lists the unused models, explores and fields that can be
removed. Data comes from the live API or from a snapshot file (--snapshot).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("henry version {{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.New(errors.ScopeInvalid, "invalid flags for "+cmd.CommandPath(), err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default: .henry/config.toml in the working or home directory)")
	pf.StringVar(&g.snapshotPath, "snapshot", "", "Read metadata and query history from a snapshot file instead of the API")
	pf.StringVar(&g.format, "format", "", "Output format: table, plain or json (default: output.format)")
	pf.IntVar(&g.workers, "workers", 0, "Explores analyzed concurrently (default: concurrency.workers)")
	pf.CountVarP(&g.verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVar(&g.quiet, "quiet", false, "Suppress all log output")

	root.AddCommand(
		newAnalyzeCmd(g),
		newVacuumCmd(g),
		newSnapshotCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Full())
		},
	}
}
