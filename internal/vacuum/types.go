// Package vacuum computes unused fields, joins, explores and models by diffing
// exposed metadata against query-history usage.
package vacuum

import (
	"henry/internal/identifier"
	"henry/internal/usage"
)

// AllUnusedMarker is shown in place of a field list when no view of an explore
// appears in the query history.
const AllUnusedMarker = "ALL"

// ExploreDiff is the per-explore comparison at full model.explore.view.field
// granularity. Exposed is partitioned exactly into Used and Unused.
type ExploreDiff struct {
	Model   string
	Explore string

	// Exposed is every non-hidden field of the explore.
	Exposed identifier.Set[identifier.FieldID]

	// LogUsed holds the query-history counts recorded against this explore.
	LogUsed usage.Counts

	// JoinReferenced holds the view.field references found in join conditions.
	JoinReferenced identifier.Set[identifier.ViewField]

	// Used is the exposed fields found in the history or referenced by a join.
	Used identifier.Set[identifier.FieldID]

	// Unused is Exposed minus Used.
	Unused identifier.Set[identifier.FieldID]

	// AllJoins is the explore's scope minus its own name.
	AllJoins identifier.Set[string]

	// UsedViews is every view with a field in LogUsed.
	UsedViews identifier.Set[string]

	// UsedJoins is AllJoins restricted to UsedViews.
	UsedJoins identifier.Set[string]

	// UnusedJoins is AllJoins minus UsedViews. Join usage is inferred from the view
	// of used fields, so a join queried only through filter-only fields may land here.
	UnusedJoins identifier.Set[string]

	// Reportable is Unused restricted to fields of used views or the base view,
	// sorted. Fields of unused joins are left out since the join itself is reported.
	Reportable []identifier.FieldID

	// AllUnused is set when the history mentions no view of the explore at all;
	// the report then shows AllUnusedMarker instead of enumerating fields.
	AllUnused bool
}

// ViewUnused is one row of the view-grouped unused-field report.
type ViewUnused struct {
	View   string   `json:"view"`
	Fields []string `json:"unusedFields"`
}

// GroupSummary counts what the view-grouped report left out.
type GroupSummary struct {
	Views        int            `json:"views"`
	SkippedViews int            `json:"skippedViews"`
	Unused       int            `json:"unused"`
	Excluded     int            `json:"excluded"`
	ByReason     map[string]int `json:"byReason"`
}
