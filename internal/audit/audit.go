// Package audit runs one henry invocation: it fetches metadata and query history
// from a source, diffs them, and assembles the requested report.
package audit

import (
	"context"
	"log/slog"
	"time"

	"henry/internal/errors"
	"henry/internal/report"
	"henry/internal/source"
	"henry/internal/vacuum"
)

// DefaultTimeframeDays is the history window used when none is given.
const DefaultTimeframeDays = 90

// Options scopes one invocation.
type Options struct {
	Project string
	Model   string
	Explore string

	TimeframeDays int
	MinRunCount   int

	// SortKey, Descending and Limit apply to analyze reports only.
	SortKey    string
	Descending bool
	Limit      int
}

func (o Options) validate(kind report.Kind) error {
	if o.Explore != "" && o.Model == "" {
		return errors.Newf(errors.ScopeInvalid, "--explore requires --model: explore names are only unique within a model")
	}
	if o.TimeframeDays <= 0 {
		return errors.Newf(errors.ScopeInvalid, "timeframe must be positive, got %d days", o.TimeframeDays)
	}
	if o.MinRunCount < 0 {
		return errors.Newf(errors.ScopeInvalid, "min queries must not be negative, got %d", o.MinRunCount)
	}
	if o.Limit < 0 {
		return errors.Newf(errors.ScopeInvalid, "limit must not be negative, got %d", o.Limit)
	}
	if !kind.Sortable() && (o.SortKey != "" || o.Limit > 0) {
		return errors.Newf(errors.ScopeInvalid, "%s does not support sorting or limits", kind)
	}
	return nil
}

// Auditor runs reports against one source.
type Auditor struct {
	source   source.Source
	analyzer *vacuum.Analyzer
	logger   *slog.Logger
	workers  int
}

// NewAuditor creates an auditor. workers bounds the explores processed at once.
func NewAuditor(src source.Source, analyzer *vacuum.Analyzer, logger *slog.Logger, workers int) *Auditor {
	if workers <= 0 {
		workers = 1
	}
	return &Auditor{
		source:   src,
		analyzer: analyzer,
		logger:   logger,
		workers:  workers,
	}
}

// Run produces the report of the given kind.
//
// Scope mismatches come back as errors.NotFound or errors.EmptyResult. A
// cancelled context abandons the run and nothing partial is returned.
func (a *Auditor) Run(ctx context.Context, kind report.Kind, opts Options) (*report.Report, error) {
	h, err := HandlerFor(kind)
	if err != nil {
		return nil, err
	}
	if err := opts.validate(kind); err != nil {
		return nil, err
	}

	start := time.Now()
	a.logger.Info("Running audit",
		"kind", kind,
		"project", opts.Project,
		"model", opts.Model,
		"explore", opts.Explore,
		"timeframeDays", opts.TimeframeDays,
		"minQueries", opts.MinRunCount)

	records, err := h.Records(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := report.New(kind, source.Describe(a.source), records)
	if err != nil {
		return nil, err
	}
	if kind.Sortable() {
		if err := r.Sort(opts.SortKey, opts.Descending); err != nil {
			return nil, err
		}
		r.Limit(opts.Limit)
	}

	a.logger.Info("Audit complete",
		"kind", kind,
		"records", r.Len(),
		"duration", time.Since(start).Round(time.Millisecond))
	return r, nil
}
