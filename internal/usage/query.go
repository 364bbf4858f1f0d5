package usage

import (
	"fmt"

	"henry/internal/errors"
)

// Granularity selects which history columns a usage query returns.
type Granularity string

const (
	// GranularityFields returns model, explore, the text blobs and the run count.
	GranularityFields Granularity = "fields"
	// GranularityExplores returns explore and run count.
	GranularityExplores Granularity = "explores"
	// GranularityModels returns model and run count.
	GranularityModels Granularity = "models"
)

// Query is a request for query-history rows.
type Query struct {
	Granularity Granularity
	// Models restricts rows to these models; empty means every model.
	Models []string
	// Views restricts rows to these explores; empty means every explore.
	Views []string
	// TimeframeDays bounds the history window.
	TimeframeDays int
	// MinRunCount drops rows whose run count is below it.
	MinRunCount int
}

// Validate checks the window and granularity.
func (q Query) Validate() error {
	switch q.Granularity {
	case GranularityFields, GranularityExplores, GranularityModels:
	default:
		return errors.Newf(errors.ScopeInvalid, "unknown usage granularity %q", q.Granularity)
	}
	if q.TimeframeDays <= 0 {
		return errors.Newf(errors.ScopeInvalid, "timeframe must be positive, got %d days", q.TimeframeDays)
	}
	if q.MinRunCount < 0 {
		return errors.Newf(errors.ScopeInvalid, "min queries must not be negative, got %d", q.MinRunCount)
	}
	return nil
}

// Matches reports whether a row falls inside the query's model and explore filters
// and meets the run-count threshold. Sources that hold rows locally use it; the
// live API applies the same filters server-side.
func (q Query) Matches(row RawRow) bool {
	if row.RunCount < q.MinRunCount {
		return false
	}
	if len(q.Models) > 0 && !contains(q.Models, row.Model) {
		return false
	}
	if len(q.Views) > 0 && !contains(q.Views, row.Explore) {
		return false
	}
	return true
}

// Project reduces a row to the columns of the query's granularity.
func (q Query) Project(row RawRow) RawRow {
	switch q.Granularity {
	case GranularityModels:
		return RawRow{Model: row.Model, RunCount: row.RunCount}
	case GranularityExplores:
		return RawRow{Model: row.Model, Explore: row.Explore, RunCount: row.RunCount}
	}
	return row
}

func (q Query) String() string {
	return fmt.Sprintf("%s models=%v views=%v timeframe=%dd min=%d",
		q.Granularity, q.Models, q.Views, q.TimeframeDays, q.MinRunCount)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
