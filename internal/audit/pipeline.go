package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"henry/internal/errors"
	"henry/internal/identifier"
	"henry/internal/metadata"
	"henry/internal/usage"
	"henry/internal/vacuum"
)

type exploreRef struct {
	model    string
	explore  string
	explicit bool
}

// analyzedExplore is one explore with its diff against the history.
type analyzedExplore struct {
	explore *metadata.Explore
	diff    *vacuum.ExploreDiff
}

// models fetches the models in scope.
func (a *Auditor) models(ctx context.Context, opts Options) ([]metadata.Model, error) {
	models, err := a.source.Models(ctx, opts.Project, opts.Model)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errors.Newf(errors.EmptyResult, "No matching models found")
	}
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})
	return models, nil
}

func (a *Auditor) usage(ctx context.Context, q usage.Query) ([]usage.RawRow, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rows, err := a.source.Usage(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch query history (%s): %w", q, err)
	}
	a.logger.Debug("Fetched query history", "query", q.String(), "rows", len(rows))
	return rows, nil
}

// modelCounts returns run counts per model.
func (a *Auditor) modelCounts(ctx context.Context, opts Options) (usage.Lookup, error) {
	rows, err := a.usage(ctx, usage.Query{
		Granularity:   usage.GranularityModels,
		TimeframeDays: opts.TimeframeDays,
		MinRunCount:   opts.MinRunCount,
	})
	if err != nil {
		return nil, err
	}
	return usage.AggregateBy(rows, usage.KeyModel, a.logger)
}

// exploreCounts returns run counts per explore, keyed by canonical model name.
func (a *Auditor) exploreCounts(ctx context.Context, opts Options, models []string) (map[string]usage.Lookup, error) {
	rows, err := a.usage(ctx, usage.Query{
		Granularity:   usage.GranularityExplores,
		Models:        models,
		TimeframeDays: opts.TimeframeDays,
		MinRunCount:   opts.MinRunCount,
	})
	if err != nil {
		return nil, err
	}

	byModel := make(map[string][]usage.RawRow)
	for _, row := range rows {
		if strings.TrimSpace(row.Model) == "" {
			continue
		}
		model, err := identifier.Name(row.Model)
		if err != nil {
			return nil, err
		}
		byModel[model] = append(byModel[model], row)
	}

	counts := make(map[string]usage.Lookup, len(models))
	for _, m := range models {
		name, err := identifier.Name(m)
		if err != nil {
			return nil, err
		}
		lookup, err := usage.AggregateBy(byModel[name], usage.KeyExplore, a.logger)
		if err != nil {
			return nil, err
		}
		counts[name] = lookup
	}
	return counts, nil
}

// exploreRefs lists the explores in scope.
func (a *Auditor) exploreRefs(ctx context.Context, opts Options) ([]exploreRef, error) {
	if opts.Explore != "" {
		return []exploreRef{{model: opts.Model, explore: opts.Explore, explicit: true}}, nil
	}

	models, err := a.source.Models(ctx, opts.Project, opts.Model)
	if err != nil {
		return nil, err
	}
	var refs []exploreRef
	for _, m := range models {
		for _, e := range m.Explores {
			refs = append(refs, exploreRef{model: m.Name, explore: e.Name})
		}
	}
	if len(refs) == 0 {
		return nil, errors.Newf(errors.EmptyResult, "No matching explores found")
	}
	return refs, nil
}

// analyzeExplores fetches and diffs every explore in scope on a bounded pool.
// Results come back ordered by model then explore.
func (a *Auditor) analyzeExplores(ctx context.Context, opts Options) ([]analyzedExplore, error) {
	refs, err := a.exploreRefs(ctx, opts)
	if err != nil {
		return nil, err
	}

	results := make([]*analyzedExplore, len(refs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, ref := range refs {
		g.Go(func() error {
			res, err := a.analyzeExplore(gctx, ref, opts)
			if err != nil {
				return err
			}
			results[i] = res
			a.logger.Info("Analyzed explore",
				"explore", ref.model+"."+ref.explore,
				"progress", fmt.Sprintf("%d of %d", done.Add(1), len(refs)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]analyzedExplore, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	if len(out) == 0 {
		return nil, errors.Newf(errors.EmptyResult, "No matching explores found")
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].diff.Model != out[j].diff.Model {
			return out[i].diff.Model < out[j].diff.Model
		}
		return out[i].diff.Explore < out[j].diff.Explore
	})
	return out, nil
}

// analyzeExplore returns nil for a listed explore the source cannot find; the
// API lists such explores when their LookML fails to compile.
func (a *Auditor) analyzeExplore(ctx context.Context, ref exploreRef, opts Options) (*analyzedExplore, error) {
	e, err := a.source.Explore(ctx, ref.model, ref.explore)
	if err != nil {
		if errors.Is(err, errors.NotFound) && !ref.explicit {
			a.logger.Warn("Skipping explore missing from source", "model", ref.model, "explore", ref.explore)
			return nil, nil
		}
		return nil, err
	}

	scope, err := metadata.Scope(e)
	if err != nil {
		return nil, err
	}
	rows, err := a.usage(ctx, usage.Query{
		Granularity:   usage.GranularityFields,
		Models:        []string{e.Model},
		Views:         scope.Sorted(),
		TimeframeDays: opts.TimeframeDays,
		MinRunCount:   opts.MinRunCount,
	})
	if err != nil {
		return nil, err
	}
	counts, err := usage.Aggregate(rows)
	if err != nil {
		return nil, err
	}

	diff, err := vacuum.DiffExplore(e, counts)
	if err != nil {
		return nil, fmt.Errorf("failed to diff explore %s.%s: %w", ref.model, ref.explore, err)
	}
	return &analyzedExplore{explore: e, diff: diff}, nil
}

func modelNames(explores []analyzedExplore) []string {
	set := identifier.NewSet[string]()
	for _, ae := range explores {
		set.Add(ae.diff.Model)
	}
	return set.Sorted()
}

func viewFields(ids []identifier.FieldID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.ViewField().String()
	}
	return out
}
