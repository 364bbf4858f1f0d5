package vacuum

import (
	"log/slog"
	"sort"

	"henry/internal/errors"
	"henry/internal/identifier"
	"henry/internal/metadata"
	"henry/internal/usage"
)

// Analyzer computes unused elements from metadata and usage counts.
type Analyzer struct {
	exclusions *ExclusionRules
	logger     *slog.Logger
}

// NewAnalyzer creates a new analyzer. excludePatterns are extra view.field globs
// kept out of the view-grouped report.
func NewAnalyzer(logger *slog.Logger, excludePatterns []string) *Analyzer {
	return &Analyzer{
		exclusions: NewExclusionRules(excludePatterns),
		logger:     logger,
	}
}

// DiffExplore compares one explore's exposed fields with the usage counts.
// used may hold counts for other explores; only this explore's are considered.
//
// A join counts as used when any used field belongs to its view. A join that
// only contributes filter fields can therefore be reported unused.
func DiffExplore(e *metadata.Explore, used usage.Counts) (*ExploreDiff, error) {
	model, err := identifier.Name(e.Model)
	if err != nil {
		return nil, err
	}
	explore, err := identifier.Name(e.Name)
	if err != nil {
		return nil, err
	}

	exposed, err := metadata.ExposedFields(e)
	if err != nil {
		return nil, err
	}
	joinRefs, err := metadata.JoinReferencedFields(e)
	if err != nil {
		return nil, err
	}
	allJoins, err := metadata.Joins(e)
	if err != nil {
		return nil, err
	}

	logUsed := used.ForExplore(model, explore)

	usedIDs := logUsed.Set()
	for vf := range joinRefs {
		id, err := vf.Scoped(model, explore)
		if err != nil {
			return nil, err
		}
		usedIDs.Add(id)
	}

	d := &ExploreDiff{
		Model:          model,
		Explore:        explore,
		Exposed:        exposed,
		LogUsed:        logUsed,
		JoinReferenced: joinRefs,
		Used:           exposed.Intersect(usedIDs),
		Unused:         exposed.Difference(usedIDs),
		AllJoins:       allJoins,
		UsedViews:      logUsed.Views(),
	}
	d.UsedJoins = allJoins.Intersect(d.UsedViews)
	d.UnusedJoins = allJoins.Difference(d.UsedViews)
	d.AllUnused = d.UsedViews.Len() == 0

	eligible := d.UsedViews.Union(identifier.NewSet(explore))
	for _, id := range d.Unused.Sorted() {
		if d.AllUnused || eligible.Has(id.View) {
			d.Reportable = append(d.Reportable, id)
		}
	}

	return d, nil
}

// UnusedFieldsByView groups unused fields across explores at view.field
// granularity. A field is used if any explore's history or join conditions
// reference it. Protected fields, time-grain variants, user-excluded fields and
// views with digits in their name are left out. Every remaining view gets a row,
// possibly with no fields.
func (a *Analyzer) UnusedFieldsByView(diffs []*ExploreDiff) ([]ViewUnused, GroupSummary, error) {
	summary := GroupSummary{ByReason: make(map[string]int)}
	if len(diffs) == 0 {
		return nil, summary, errors.Newf(errors.EmptyResult, "No matching explores found")
	}

	exposed := make(identifier.Set[identifier.ViewField])
	used := make(identifier.Set[identifier.ViewField])
	views := make(identifier.Set[string])

	for _, d := range diffs {
		for id := range d.Exposed {
			exposed.Add(id.ViewField())
			views.Add(id.View)
		}
		for id := range d.LogUsed {
			used.Add(id.ViewField())
			views.Add(id.View)
		}
		for vf := range d.JoinReferenced {
			used.Add(vf)
			views.Add(vf.View)
		}
	}

	byView := make(map[string][]string)
	for _, vf := range exposed.Difference(used).Sorted() {
		if reason := a.exclusions.ShouldExclude(vf); reason != "" {
			summary.Excluded++
			summary.ByReason[reason]++
			continue
		}
		byView[vf.View] = append(byView[vf.View], vf.String())
	}

	var out []ViewUnused
	for _, view := range views.Sorted() {
		if IsDynamicView(view) {
			summary.SkippedViews++
			continue
		}
		fields := byView[view]
		if fields == nil {
			fields = []string{}
		}
		summary.Unused += len(fields)
		out = append(out, ViewUnused{View: view, Fields: fields})
	}
	summary.Views = len(out)

	a.logger.Debug("Grouped unused fields by view",
		"explores", len(diffs),
		"views", summary.Views,
		"skippedViews", summary.SkippedViews,
		"unused", summary.Unused,
		"excluded", summary.Excluded)

	if len(out) == 0 {
		return nil, summary, errors.Newf(errors.EmptyResult, "No matching explores found")
	}
	return out, summary, nil
}

// UnusedExplores returns the explores absent from the explore-level lookup, sorted.
func UnusedExplores(exploreNames []string, counts usage.Lookup) ([]string, error) {
	return unusedNames(exploreNames, func(name string) bool {
		_, ok := counts[name]
		return !ok
	})
}

// UnusedModels returns the models with a zero run count in the model-level lookup, sorted.
func UnusedModels(modelNames []string, counts usage.Lookup) ([]string, error) {
	return unusedNames(modelNames, func(name string) bool {
		return counts.Get(name) == 0
	})
}

func unusedNames(names []string, unused func(string) bool) ([]string, error) {
	out := []string{}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		name, err := identifier.Name(n)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if unused(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
