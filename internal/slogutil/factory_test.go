package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"henry/internal/config"
)

func TestFactory_EffectiveLevel(t *testing.T) {
	tests := []struct {
		name      string
		cfgLevel  string
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{"default", "", 0, false, slog.LevelWarn},
		{"config level", "debug", 0, false, slog.LevelDebug},
		{"flag beats config", "error", 1, false, slog.LevelInfo},
		{"quiet beats everything", "debug", 2, true, Silent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(config.LoggingConfig{Level: tt.cfgLevel}, tt.verbosity, tt.quiet)
			if got := f.EffectiveLevel(); got != tt.want {
				t.Errorf("EffectiveLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFactory_LoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "henry.log")
	f := NewFactory(config.LoggingConfig{Level: "info", File: path, MaxSize: "1MB", MaxBackups: 1}, 0, false)

	var stderr bytes.Buffer
	logger, err := f.Logger(&stderr)
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}

	logger.Info("fetch complete", "explores", 2)
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "fetch complete") {
		t.Errorf("log file missing record, got: %s", data)
	}
	if !strings.Contains(stderr.String(), "fetch complete") {
		t.Errorf("stderr missing record, got: %s", stderr.String())
	}
}
