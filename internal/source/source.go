// Package source defines where henry reads semantic-layer metadata and query
// history from. The live API client and frozen snapshot files both implement Source.
package source

import (
	"context"

	"henry/internal/metadata"
	"henry/internal/usage"
)

// Source supplies metadata and query history for one invocation.
//
// Filters are applied by the source: an empty project or model string means no
// filter. Not-found conditions are returned as errors.NotFound.
type Source interface {
	// Projects returns the named project with its file listing, or every project.
	Projects(ctx context.Context, project string) ([]metadata.Project, error)

	// Models returns models with content, filtered by project and model.
	Models(ctx context.Context, project, model string) ([]metadata.Model, error)

	// Explore returns the full metadata of one explore.
	Explore(ctx context.Context, model, explore string) (*metadata.Explore, error)

	// Usage returns query-history rows for the query's window and filters.
	Usage(ctx context.Context, q usage.Query) ([]usage.RawRow, error)

	// GitTests runs the project's git connection tests.
	GitTests(ctx context.Context, project string) ([]metadata.GitTestResult, error)
}

// Describer is implemented by sources that can name themselves in report headers.
type Describer interface {
	Describe() Info
}

// Info identifies the data behind a report.
type Info struct {
	Kind       string `json:"kind"`
	Location   string `json:"location"`
	ID         string `json:"id,omitempty"`
	CapturedAt string `json:"capturedAt,omitempty"`
}

// Describe returns src's Info, or a generic one when src does not describe itself.
func Describe(src Source) Info {
	if d, ok := src.(Describer); ok {
		return d.Describe()
	}
	return Info{Kind: "unknown"}
}
