package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"henry/internal/errors"
	"henry/internal/identifier"
	"henry/internal/metadata"
	"henry/internal/report"
	"henry/internal/vacuum"
)

// Handler builds the records of one report kind.
type Handler interface {
	Kind() report.Kind
	// Records returns a slice of the kind's record type.
	Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error)
}

// HandlerFor resolves the handler of a report kind.
func HandlerFor(kind report.Kind) (Handler, error) {
	switch kind {
	case report.VacuumModels:
		return vacuumModels{}, nil
	case report.VacuumExplores:
		return vacuumExplores{}, nil
	case report.VacuumFields:
		return vacuumFields{}, nil
	case report.AnalyzeProjects:
		return analyzeProjects{}, nil
	case report.AnalyzeModels:
		return analyzeModels{}, nil
	case report.AnalyzeExplores:
		return analyzeExplores{}, nil
	case report.AnalyzeFields:
		return analyzeFields{}, nil
	}
	return nil, errors.Newf(errors.ScopeInvalid, "unknown report kind %q", kind)
}

type vacuumModels struct{}

func (vacuumModels) Kind() report.Kind { return report.VacuumModels }

func (vacuumModels) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	rows, err := modelRows(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	records := make([]report.VacuumModel, len(rows))
	for i, r := range rows {
		records[i] = report.VacuumModel{
			Model:              r.name,
			UnusedExplores:     r.unusedExplores,
			ModelQueryRunCount: r.runCount,
		}
	}
	return records, nil
}

type analyzeModels struct{}

func (analyzeModels) Kind() report.Kind { return report.AnalyzeModels }

func (analyzeModels) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	rows, err := modelRows(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	records := make([]report.AnalyzeModel, len(rows))
	for i, r := range rows {
		records[i] = report.AnalyzeModel{
			Project:        r.model.Project,
			Model:          r.name,
			ExploreCount:   len(r.model.Explores),
			UnusedExplores: len(r.unusedExplores),
			QueryRunCount:  r.runCount,
		}
	}
	return records, nil
}

type modelRow struct {
	model          metadata.Model
	name           string
	unusedExplores []string
	runCount       int
}

// modelRows computes the per-model usage shared by vacuum models and analyze models.
func modelRows(ctx context.Context, a *Auditor, opts Options) ([]modelRow, error) {
	models, err := a.models(ctx, opts)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		if names[i], err = identifier.Name(m.Name); err != nil {
			return nil, err
		}
	}

	modelCounts, err := a.modelCounts(ctx, opts)
	if err != nil {
		return nil, err
	}
	exploreCounts, err := a.exploreCounts(ctx, opts, names)
	if err != nil {
		return nil, err
	}

	rows := make([]modelRow, len(models))
	for i, m := range models {
		a.logger.Info("Processing model", "model", names[i], "progress", fmt.Sprintf("%d of %d", i+1, len(models)))
		unused, err := vacuum.UnusedExplores(m.ExploreNames(), exploreCounts[names[i]])
		if err != nil {
			return nil, err
		}
		rows[i] = modelRow{
			model:          m,
			name:           names[i],
			unusedExplores: unused,
			runCount:       modelCounts.Get(names[i]),
		}
	}
	return rows, nil
}

type vacuumExplores struct{}

func (vacuumExplores) Kind() report.Kind { return report.VacuumExplores }

func (vacuumExplores) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	explores, err := a.analyzeExplores(ctx, opts)
	if err != nil {
		return nil, err
	}
	records := make([]report.VacuumExplore, len(explores))
	for i, ae := range explores {
		d := ae.diff
		fields := viewFields(d.Reportable)
		if d.AllUnused {
			fields = []string{vacuum.AllUnusedMarker}
		}
		records[i] = report.VacuumExplore{
			Model:           d.Model,
			Explore:         d.Explore,
			UnusedJoins:     d.UnusedJoins.Sorted(),
			UnusedFields:    fields,
			AllFieldsUnused: d.AllUnused,
		}
	}
	return records, nil
}

type vacuumFields struct{}

func (vacuumFields) Kind() report.Kind { return report.VacuumFields }

func (vacuumFields) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	explores, err := a.analyzeExplores(ctx, opts)
	if err != nil {
		return nil, err
	}
	diffs := make([]*vacuum.ExploreDiff, len(explores))
	for i, ae := range explores {
		diffs[i] = ae.diff
	}

	views, summary, err := a.analyzer.UnusedFieldsByView(diffs)
	if err != nil {
		return nil, err
	}
	if summary.Excluded > 0 {
		a.logger.Info("Left heuristic matches out of the report",
			"excluded", summary.Excluded,
			"skippedViews", summary.SkippedViews)
	}

	records := make([]report.VacuumField, len(views))
	for i, v := range views {
		records[i] = report.VacuumField{View: v.View, UnusedFields: v.Fields}
	}
	return records, nil
}

type analyzeExplores struct{}

func (analyzeExplores) Kind() report.Kind { return report.AnalyzeExplores }

func (analyzeExplores) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	explores, err := a.analyzeExplores(ctx, opts)
	if err != nil {
		return nil, err
	}
	counts, err := a.exploreCounts(ctx, opts, modelNames(explores))
	if err != nil {
		return nil, err
	}

	records := make([]report.AnalyzeExplore, len(explores))
	for i, ae := range explores {
		d := ae.diff
		records[i] = report.AnalyzeExplore{
			Model:          d.Model,
			Explore:        d.Explore,
			IsHidden:       ae.explore.Hidden,
			HasDescription: strings.TrimSpace(ae.explore.Description) != "",
			JoinCount:      d.AllJoins.Len(),
			UnusedJoins:    d.UnusedJoins.Len(),
			FieldCount:     d.Exposed.Len(),
			UnusedFields:   d.Unused.Len(),
			QueryCount:     counts[d.Model].Get(d.Explore),
		}
	}
	return records, nil
}

type analyzeFields struct{}

func (analyzeFields) Kind() report.Kind { return report.AnalyzeFields }

func (analyzeFields) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	explores, err := a.analyzeExplores(ctx, opts)
	if err != nil {
		return nil, err
	}
	records := make([]report.AnalyzeField, len(explores))
	for i, ae := range explores {
		records[i] = report.AnalyzeField{
			Model:              ae.diff.Model,
			Explore:            ae.diff.Explore,
			FieldCount:         ae.diff.Exposed.Len(),
			UnusedFields:       ae.diff.Unused.Len(),
			MissingDescription: metadata.CountMissingDescriptions(ae.explore),
			Dimensions:         metadata.CountDimensions(ae.explore),
			Measures:           metadata.CountMeasures(ae.explore),
		}
	}
	return records, nil
}

type analyzeProjects struct{}

func (analyzeProjects) Kind() report.Kind { return report.AnalyzeProjects }

func (analyzeProjects) Records(ctx context.Context, a *Auditor, opts Options) (interface{}, error) {
	projects, err := a.source.Projects(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, errors.Newf(errors.EmptyResult, "No matching projects found")
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})

	records := make([]report.AnalyzeProject, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, p := range projects {
		g.Go(func() error {
			results, err := a.source.GitTests(gctx, p.Name)
			if err != nil {
				return fmt.Errorf("failed to run git connection tests for %s: %w", p.Name, err)
			}
			models, views := p.CountFiles()
			records[i] = report.AnalyzeProject{
				Project:             p.Name,
				ModelCount:          models,
				ViewCount:           views,
				GitConnectionStatus: GitStatus(results),
				PullRequestMode:     p.PullRequestMode,
				ValidationRequired:  p.ValidationRequired,
			}
			a.logger.Info("Analyzed project", "project", p.Name, "gitTests", len(results))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// GitStatus summarizes git connection tests: "OK" when every test passed,
// otherwise one "(i/n) id: status" line per test.
func GitStatus(results []metadata.GitTestResult) string {
	failed := false
	lines := make([]string, len(results))
	for i, r := range results {
		if !r.Passed() {
			failed = true
		}
		lines[i] = fmt.Sprintf("(%d/%d) %s: %s", i+1, len(results), r.ID, r.Status)
	}
	if !failed {
		return "OK"
	}
	return strings.Join(lines, "\n")
}
