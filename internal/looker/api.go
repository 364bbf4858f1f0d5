package looker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"henry/internal/errors"
	"henry/internal/metadata"
	"henry/internal/source"
	"henry/internal/usage"
)

// Query-history columns of the system activity explore.
const (
	historyModel = "i__looker"
	historyView  = "history"

	colModel    = "query.model"
	colExplore  = "query.view"
	colFields   = "query.formatted_fields"
	colFilters  = "query.formatted_filters"
	colPivots   = "query.formatted_pivots"
	colSorts    = "query.sorts"
	colRunCount = "history.query_run_count"

	filterCreated = "history.created_date"
)

var _ source.Source = (*Client)(nil)

// Describe names the instance in report headers.
func (c *Client) Describe() source.Info {
	return source.Info{Kind: "api", Location: c.baseURL}
}

type projectDTO struct {
	ID                 string `json:"id"`
	PullRequestMode    string `json:"pull_request_mode"`
	ValidationRequired bool   `json:"validation_required"`
	GitRemoteURL       string `json:"git_remote_url"`
}

// Projects returns the named project, or every project, with its file listing.
func (c *Client) Projects(ctx context.Context, project string) ([]metadata.Project, error) {
	var dtos []projectDTO
	if project == "" {
		if err := c.call(ctx, http.MethodGet, "/projects", nil, nil, &dtos); err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
	} else {
		var dto projectDTO
		if err := c.call(ctx, http.MethodGet, "/projects/"+url.PathEscape(project), nil, nil, &dto); err != nil {
			if errors.Is(err, errors.NotFound) {
				return nil, errors.New(errors.NotFound, fmt.Sprintf("project %q not found", project), err)
			}
			return nil, fmt.Errorf("failed to fetch project %s: %w", project, err)
		}
		dtos = []projectDTO{dto}
	}

	projects := make([]metadata.Project, 0, len(dtos))
	for _, dto := range dtos {
		var files []metadata.ProjectFile
		if err := c.call(ctx, http.MethodGet, "/projects/"+url.PathEscape(dto.ID)+"/files", nil, nil, &files); err != nil {
			return nil, fmt.Errorf("failed to list files of project %s: %w", dto.ID, err)
		}
		projects = append(projects, metadata.Project{
			Name:               dto.ID,
			PullRequestMode:    dto.PullRequestMode,
			ValidationRequired: dto.ValidationRequired,
			GitRemoteURL:       dto.GitRemoteURL,
			Files:              files,
		})
	}
	return projects, nil
}

// Models returns models with content. A named model the API does not know
// yields an empty list.
func (c *Client) Models(ctx context.Context, project, model string) ([]metadata.Model, error) {
	var models []metadata.Model
	if model != "" {
		var m metadata.Model
		err := c.call(ctx, http.MethodGet, "/lookml_models/"+url.PathEscape(model), nil, nil, &m)
		switch {
		case errors.Is(err, errors.NotFound):
			c.logger.Debug("Model not found", "model", model)
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("failed to fetch model %s: %w", model, err)
		}
		if project != "" && m.Project != project {
			c.logger.Warn("Ignoring project filter, model names are unique across projects",
				"model", model, "project", project, "modelProject", m.Project)
		}
		models = []metadata.Model{m}
	} else {
		if err := c.call(ctx, http.MethodGet, "/lookml_models", nil, nil, &models); err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
	}
	return metadata.FilterModels(models, project, model)
}

// Explore returns the full metadata of one explore.
func (c *Client) Explore(ctx context.Context, model, explore string) (*metadata.Explore, error) {
	path := "/lookml_models/" + url.PathEscape(model) + "/explores/" + url.PathEscape(explore)
	var e metadata.Explore
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &e); err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.New(errors.NotFound, fmt.Sprintf("explore %s.%s not found", model, explore), err)
		}
		return nil, fmt.Errorf("failed to fetch explore %s.%s: %w", model, explore, err)
	}
	if e.Model == "" {
		e.Model = model
	}
	if e.Name == "" {
		e.Name = explore
	}
	return &e, nil
}

type inlineQuery struct {
	Model   string            `json:"model"`
	View    string            `json:"view"`
	Fields  []string          `json:"fields"`
	Filters map[string]string `json:"filters"`
	Limit   string            `json:"limit"`
}

// Usage runs an inline query against the system activity history explore.
func (c *Client) Usage(ctx context.Context, q usage.Query) ([]usage.RawRow, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var rows []map[string]json.RawMessage
	if err := c.call(ctx, http.MethodPost, "/queries/run/json", nil, historyQuery(q, c.rowLimit), &rows); err != nil {
		return nil, fmt.Errorf("failed to run history query: %w", err)
	}
	if c.rowLimit > 0 && len(rows) >= c.rowLimit {
		c.logger.Warn("History query hit the row limit, counts may be incomplete",
			"limit", c.rowLimit, "query", q.String())
	}

	out := make([]usage.RawRow, 0, len(rows))
	for i, r := range rows {
		runCount, err := intValue(r[colRunCount])
		if err != nil {
			return nil, errors.New(errors.BackendUnavailable,
				fmt.Sprintf("history row %d has an unreadable run count", i), err)
		}
		out = append(out, q.Project(usage.RawRow{
			Model:    stringValue(r[colModel]),
			Explore:  stringValue(r[colExplore]),
			Fields:   stringValue(r[colFields]),
			Filters:  stringValue(r[colFilters]),
			Pivots:   stringValue(r[colPivots]),
			Sorts:    stringValue(r[colSorts]),
			RunCount: runCount,
		}))
	}
	return out, nil
}

// historyQuery builds the inline query body for q.
func historyQuery(q usage.Query, limit int) inlineQuery {
	var fields []string
	switch q.Granularity {
	case usage.GranularityModels:
		fields = []string{colModel, colRunCount}
	case usage.GranularityExplores:
		fields = []string{colModel, colExplore, colRunCount}
	default:
		fields = []string{colModel, colExplore, colFields, colFilters, colSorts, colPivots, colRunCount}
	}

	filters := map[string]string{
		filterCreated: strconv.Itoa(q.TimeframeDays) + " days",
		colModel:      modelFilter(q.Models),
		colRunCount:   ">=" + strconv.Itoa(q.MinRunCount),
	}
	if len(q.Views) > 0 {
		filters[colExplore] = listFilter(q.Views)
	}

	body := inlineQuery{
		Model:   historyModel,
		View:    historyView,
		Fields:  fields,
		Filters: filters,
	}
	if limit > 0 {
		body.Limit = strconv.Itoa(limit)
	}
	return body
}

// modelFilter matches models and always excludes the history model itself.
func modelFilter(models []string) string {
	exclude := "-" + escapeFilter(historyModel)
	if len(models) == 0 {
		return exclude
	}
	return listFilter(models) + "," + exclude
}

func listFilter(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escapeFilter(v)
	}
	return strings.Join(escaped, ",")
}

var filterEscaper = strings.NewReplacer("^", "^^", "_", "^_", "%", "^%", ",", "^,")

// escapeFilter escapes the filter expression wildcards and separators in a
// literal value.
func escapeFilter(s string) string {
	return filterEscaper.Replace(s)
}

// stringValue decodes a JSON cell; null and missing cells become "".
func stringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// intValue decodes a numeric JSON cell that may also arrive as a string.
func intValue(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(stringValue(raw))
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

type gitTestDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type sessionDTO struct {
	WorkspaceID string `json:"workspace_id"`
}

// GitTests runs every git connection test of a project. The tests need the
// development workspace; the session is switched back to production afterwards.
// Runs are serialized since the workspace is a property of the shared session.
func (c *Client) GitTests(ctx context.Context, project string) (results []metadata.GitTestResult, err error) {
	if project == "" {
		return nil, errors.Newf(errors.ScopeInvalid, "git tests need a project")
	}

	c.gitMu.Lock()
	defer c.gitMu.Unlock()

	if err := c.call(ctx, http.MethodPatch, "/session", nil, sessionDTO{WorkspaceID: "dev"}, nil); err != nil {
		return nil, fmt.Errorf("failed to enter development mode: %w", err)
	}
	defer func() {
		restoreErr := c.call(context.WithoutCancel(ctx), http.MethodPatch, "/session", nil, sessionDTO{WorkspaceID: "production"}, nil)
		if restoreErr != nil && err == nil {
			err = fmt.Errorf("failed to leave development mode: %w", restoreErr)
		}
	}()

	base := "/projects/" + url.PathEscape(project) + "/git_connection_tests"
	var tests []gitTestDTO
	if err := c.call(ctx, http.MethodGet, base, nil, nil, &tests); err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.New(errors.NotFound, fmt.Sprintf("project %q not found", project), err)
		}
		return nil, fmt.Errorf("failed to list git connection tests: %w", err)
	}

	results = make([]metadata.GitTestResult, 0, len(tests))
	for _, t := range tests {
		var run gitTestDTO
		if err := c.call(ctx, http.MethodGet, base+"/"+url.PathEscape(t.ID), nil, nil, &run); err != nil {
			return nil, fmt.Errorf("failed to run git connection test %s: %w", t.ID, err)
		}
		c.logger.Debug("Ran git connection test", "project", project, "test", t.ID, "status", run.Status)
		results = append(results, metadata.GitTestResult{ID: t.ID, Status: run.Status})
	}
	return results, nil
}
