package main

import (
	stderrors "errors"
	"log/slog"

	"github.com/spf13/cobra"

	"henry/internal/config"
	"henry/internal/errors"
	"henry/internal/looker"
	"henry/internal/report"
	"henry/internal/slogutil"
	"henry/internal/snapshot"
	"henry/internal/source"
)

// session holds what one command invocation works with.
type session struct {
	cfg     *config.Config
	format  report.Format
	logger  *slog.Logger
	source  source.Source
	factory *slogutil.Factory
}

// loadConfig loads the configuration and applies the global flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, configError(err)
	}
	if g.format != "" {
		cfg.Output.Format = g.format
	}
	if g.workers != 0 {
		cfg.Concurrency.Workers = g.workers
	}
	return cfg, nil
}

// open loads config, builds the logger and connects the data source.
func (g *globalFlags) open(cmd *cobra.Command) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}

	factory := slogutil.NewFactory(cfg.Logging, g.verbosity, g.quiet)
	logger, err := factory.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot open log file", err)
	}

	s := &session{cfg: cfg, format: format, logger: logger, factory: factory}
	if g.snapshotPath != "" {
		src, err := snapshot.Open(g.snapshotPath)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		logger.Info("Reading from snapshot", "path", g.snapshotPath, "id", src.Snapshot().ID)
		s.source = src
		return s, nil
	}

	client, err := looker.NewClient(cfg, logger)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	logger.Info("Reading from API", "baseUrl", client.BaseURL())
	s.source = client
	return s, nil
}

func (s *session) close() error {
	return s.factory.Close()
}

// configError tags configuration failures with their error code.
func configError(err error) error {
	var ce *config.ConfigError
	if stderrors.As(err, &ce) {
		return errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}
	return err
}
