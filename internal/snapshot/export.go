package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"henry/internal/errors"
	"henry/internal/metadata"
	"henry/internal/source"
	"henry/internal/usage"
)

// ExportOptions scopes what Export captures.
type ExportOptions struct {
	Project string
	Model   string
	Window  Window
	// GitTests runs each project's git connection tests and records the results.
	GitTests bool
	// Workers bounds concurrent explore fetches.
	Workers int
}

// Export captures a snapshot of src for the given scope.
func Export(ctx context.Context, src source.Source, opts ExportOptions, logger *slog.Logger) (*Snapshot, error) {
	info := source.Describe(src)
	snap := New(info.Location, opts.Window)

	projects, err := src.Projects(ctx, opts.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}
	snap.Projects = append(snap.Projects, projects...)
	logger.Info("Captured projects", "count", len(projects))

	models, err := src.Models(ctx, opts.Project, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	if len(models) == 0 {
		return nil, errors.Newf(errors.EmptyResult, "No matching models found")
	}
	snap.Models = append(snap.Models, models...)
	logger.Info("Captured models", "count", len(models))

	explores, err := fetchExplores(ctx, src, models, opts.Workers, logger)
	if err != nil {
		return nil, err
	}
	snap.Explores = append(snap.Explores, explores...)
	logger.Info("Captured explores", "count", len(explores))

	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	rows, err := src.Usage(ctx, usage.Query{
		Granularity:   usage.GranularityFields,
		Models:        names,
		TimeframeDays: opts.Window.TimeframeDays,
		MinRunCount:   opts.Window.MinRunCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch query history: %w", err)
	}
	snap.History = append(snap.History, rows...)
	logger.Info("Captured query history", "rows", len(rows))

	if opts.GitTests {
		for _, p := range projects {
			results, err := src.GitTests(ctx, p.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to run git tests for %s: %w", p.Name, err)
			}
			snap.GitTests = append(snap.GitTests, GitTestRun{Project: p.Name, Results: results})
		}
	}

	return snap, nil
}

// fetchExplores fetches every explore of the models with at most workers
// requests in flight. Explores listed by a model but missing from the API are
// skipped.
func fetchExplores(ctx context.Context, src source.Source, models []metadata.Model, workers int, logger *slog.Logger) ([]metadata.Explore, error) {
	type ref struct{ model, explore string }
	var refs []ref
	for _, m := range models {
		for _, e := range m.Explores {
			refs = append(refs, ref{m.Name, e.Name})
		}
	}

	results := make([]*metadata.Explore, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, r := range refs {
		g.Go(func() error {
			e, err := src.Explore(gctx, r.model, r.explore)
			if errors.Is(err, errors.NotFound) {
				logger.Warn("Skipping explore missing from API", "model", r.model, "explore", r.explore)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to fetch explore %s.%s: %w", r.model, r.explore, err)
			}
			results[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	explores := make([]metadata.Explore, 0, len(results))
	for _, e := range results {
		if e != nil {
			explores = append(explores, *e)
		}
	}
	sort.SliceStable(explores, func(i, j int) bool {
		if explores[i].Model != explores[j].Model {
			return explores[i].Model < explores[j].Model
		}
		return explores[i].Name < explores[j].Name
	})
	return explores, nil
}
