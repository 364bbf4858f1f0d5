package snapshot

import (
	"context"
	"time"

	"henry/internal/errors"
	"henry/internal/metadata"
	"henry/internal/source"
	"henry/internal/usage"
)

// Source serves a snapshot through the source.Source interface.
//
// History is served as captured: the snapshot's window bounds every answer, and a
// query only narrows it by model, explore and run count.
type Source struct {
	snap     *Snapshot
	location string
}

var (
	_ source.Source    = (*Source)(nil)
	_ source.Describer = (*Source)(nil)
)

// NewSource wraps an in-memory snapshot. location names it in report headers.
func NewSource(snap *Snapshot, location string) *Source {
	return &Source{snap: snap, location: location}
}

// Open loads a snapshot file as a Source.
func Open(path string) (*Source, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewSource(snap, path), nil
}

// Snapshot returns the underlying snapshot.
func (s *Source) Snapshot() *Snapshot {
	return s.snap
}

func (s *Source) Describe() source.Info {
	return source.Info{
		Kind:       "snapshot",
		Location:   s.location,
		ID:         s.snap.ID,
		CapturedAt: s.snap.CapturedAt.Format(time.RFC3339),
	}
}

func (s *Source) Projects(ctx context.Context, project string) ([]metadata.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return metadata.FilterProjects(s.snap.Projects, project)
}

func (s *Source) Models(ctx context.Context, project, model string) ([]metadata.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return metadata.FilterModels(s.snap.Models, project, model)
}

func (s *Source) Explore(ctx context.Context, model, explore string) (*metadata.Explore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range s.snap.Explores {
		e := s.snap.Explores[i]
		if e.Model == model && e.Name == explore {
			return &e, nil
		}
	}
	return nil, errors.Newf(errors.NotFound, "explore %s.%s not found in snapshot", model, explore)
}

func (s *Source) Usage(ctx context.Context, q usage.Query) ([]usage.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows := []usage.RawRow{}
	for _, row := range s.snap.History {
		if q.Matches(row) {
			rows = append(rows, q.Project(row))
		}
	}
	return rows, nil
}

func (s *Source) GitTests(ctx context.Context, project string) ([]metadata.GitTestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if project == "" {
		return nil, errors.Newf(errors.ScopeInvalid, "git tests need a project")
	}
	if _, err := metadata.FilterProjects(s.snap.Projects, project); err != nil {
		return nil, err
	}
	results, _ := s.snap.GitTestsFor(project)
	return results, nil
}
