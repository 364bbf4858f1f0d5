package testutil

import (
	"context"
	"sync"

	"henry/internal/metadata"
	"henry/internal/source"
	"henry/internal/usage"
)

// RecordingSource wraps a Source, counting calls and optionally failing one method.
type RecordingSource struct {
	source.Source

	// FailOn names the method that returns Err, e.g. "Usage".
	FailOn string
	Err    error

	mu      sync.Mutex
	calls   map[string]int
	queries []usage.Query
}

// NewRecordingSource wraps src.
func NewRecordingSource(src source.Source) *RecordingSource {
	return &RecordingSource{Source: src, calls: make(map[string]int)}
}

// Calls returns how often method was called.
func (r *RecordingSource) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Queries returns the usage queries seen so far.
func (r *RecordingSource) Queries() []usage.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]usage.Query(nil), r.queries...)
}

func (r *RecordingSource) record(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[method]++
	if r.FailOn == method {
		return r.Err
	}
	return nil
}

func (r *RecordingSource) Describe() source.Info {
	return source.Describe(r.Source)
}

func (r *RecordingSource) Projects(ctx context.Context, project string) ([]metadata.Project, error) {
	if err := r.record("Projects"); err != nil {
		return nil, err
	}
	return r.Source.Projects(ctx, project)
}

func (r *RecordingSource) Models(ctx context.Context, project, model string) ([]metadata.Model, error) {
	if err := r.record("Models"); err != nil {
		return nil, err
	}
	return r.Source.Models(ctx, project, model)
}

func (r *RecordingSource) Explore(ctx context.Context, model, explore string) (*metadata.Explore, error) {
	if err := r.record("Explore"); err != nil {
		return nil, err
	}
	return r.Source.Explore(ctx, model, explore)
}

func (r *RecordingSource) Usage(ctx context.Context, q usage.Query) ([]usage.RawRow, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	if err := r.record("Usage"); err != nil {
		return nil, err
	}
	return r.Source.Usage(ctx, q)
}

func (r *RecordingSource) GitTests(ctx context.Context, project string) ([]metadata.GitTestResult, error) {
	if err := r.record("GitTests"); err != nil {
		return nil, err
	}
	return r.Source.GitTests(ctx, project)
}
