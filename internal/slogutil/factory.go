package slogutil

import (
	"io"
	"log/slog"

	"henry/internal/config"
)

// Factory builds the process logger from configuration and CLI flags.
// Precedence for the level: CLI flags > logging.level > warn.
type Factory struct {
	cfg       config.LoggingConfig
	verbosity int
	quiet     bool
	closers   []io.Closer
}

// NewFactory creates a factory. verbosity is the number of -v flags.
func NewFactory(cfg config.LoggingConfig, verbosity int, quiet bool) *Factory {
	return &Factory{cfg: cfg, verbosity: verbosity, quiet: quiet}
}

// Logger returns a logger writing to stderr and, when logging.file is set, to a
// rotating log file at the configured level.
func (f *Factory) Logger(stderr io.Writer) (*slog.Logger, error) {
	level := f.EffectiveLevel()
	console := NewHandler(stderr, level, f.cfg.Format)

	if f.cfg.File == "" {
		return slog.New(console), nil
	}

	file, err := OpenLogFile(f.cfg.File, f.cfg.MaxSize, f.cfg.MaxBackups)
	if err != nil {
		return nil, err
	}
	f.closers = append(f.closers, file)

	fileLevel := LevelFromString(f.cfg.Level)
	if f.verbosity > 0 && level < fileLevel {
		fileLevel = level
	}
	return slog.New(NewTeeHandler(console, NewHandler(file, fileLevel, f.cfg.Format))), nil
}

// EffectiveLevel resolves the console level.
func (f *Factory) EffectiveLevel() slog.Level {
	if f.quiet || f.verbosity > 0 {
		return LevelFromVerbosity(f.verbosity, f.quiet)
	}
	if f.cfg.Level != "" {
		return LevelFromString(f.cfg.Level)
	}
	return slog.LevelWarn
}

// Close closes any open log files.
func (f *Factory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
