package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"henry/internal/config"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage henry configuration",
		Long:  "View and create henry configuration stored in .henry/config.toml",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(g), newConfigEnvCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration template",
		Long: `Write a TOML configuration template with the default settings.

Credentials are better kept out of the file: set HENRY_LOOKER_CLIENT_ID and
HENRY_LOOKER_CLIENT_SECRET (or the LOOKERSDK_* variables) instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			cfg.Looker.BaseURL = "https://your-instance.example.com:19999"
			if err := cfg.WriteTemplate(path, force); err != nil {
				return configError(err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "path", filepath.Join(config.DirName, "config.toml"), "Where to write the template")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Display the configuration after defaults, the config file, .env and
environment variables are merged. The client secret is redacted.

Examples:
  henry config show
  henry config show --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(redacted, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = toml.Marshal(redacted)
			}
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of TOML")
	return cmd
}

func newConfigEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List supported environment variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.SupportedEnvVars() {
				cmd.Println(name)
			}
		},
	}
}
