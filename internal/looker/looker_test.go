package looker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"henry/internal/config"
	"henry/internal/errors"
	"henry/internal/slogutil"
	"henry/internal/usage"
)

// fakeAPI is a minimal BI API serving canned answers.
type fakeAPI struct {
	t *testing.T

	mu       sync.Mutex
	logins   int
	queries  []inlineQuery
	sessions []string

	routes map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{t: t, routes: make(map[string]http.HandlerFunc)}
}

func (f *fakeAPI) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeAPI) recorded() ([]inlineQuery, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inlineQuery(nil), f.queries...), append([]string(nil), f.sessions...)
}

func (f *fakeAPI) handle(pattern string, h http.HandlerFunc) {
	f.routes[pattern] = h
}

func (f *fakeAPI) json(pattern string, body interface{}) {
	f.handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})
}

func (f *fakeAPI) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/4.0/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		if r.PostForm.Get("client_id") != "id" || r.PostForm.Get("client_secret") != "secret" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
			return
		}
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "token", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("POST /api/4.0/queries/run/json", func(w http.ResponseWriter, r *http.Request) {
		var q inlineQuery
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&q))
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.mu.Unlock()
		f.routes["history"](w, r)
	})
	mux.HandleFunc("PATCH /api/4.0/session", func(w http.ResponseWriter, r *http.Request) {
		var s sessionDTO
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&s))
		f.mu.Lock()
		f.sessions = append(f.sessions, s.WorkspaceID)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, s)
	})
	for pattern, h := range f.routes {
		if pattern == "history" {
			continue
		}
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer token" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Requires authentication."})
				return
			}
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Looker.BaseURL = baseURL
	cfg.Looker.ClientID = "id"
	cfg.Looker.ClientSecret = "secret"
	cfg.API.RateLimitPerSecond = 1000
	cfg.API.Burst = 100
	cfg.API.MaxRetries = 2
	cfg.API.RetryBaseDelayMs = 1

	c, err := NewClient(cfg, slogutil.NewDiscardLogger())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Looker.BaseURL = "https://bi.example.com"

	_, err := NewClient(cfg, slogutil.NewDiscardLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ConfigInvalid, errors.CodeOf(err))
}

func TestProjects(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/projects", []map[string]interface{}{
		{"id": "ecommerce", "pull_request_mode": "recommended", "validation_required": true},
	})
	api.json("GET /api/4.0/projects/ecommerce/files", []map[string]string{
		{"id": "sales.model.lkml", "type": "model"},
		{"id": "orders.view.lkml", "type": "view"},
		{"id": "README.md", "type": "document"},
	})
	client := newTestClient(t, api.server().URL)

	projects, err := client.Projects(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "ecommerce", p.Name)
	assert.Equal(t, "recommended", p.PullRequestMode)
	assert.True(t, p.ValidationRequired)
	models, views := p.CountFiles()
	assert.Equal(t, 1, models)
	assert.Equal(t, 1, views)
	assert.Equal(t, 1, api.loginCount())
}

func TestProjectNotFound(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("GET /api/4.0/projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	})
	client := newTestClient(t, api.server().URL)

	_, err := client.Projects(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Contains(t, err.Error(), `project "missing" not found`)
}

func TestModels(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/lookml_models", []map[string]interface{}{
		{"name": "sales", "project_name": "ecommerce", "has_content": true,
			"explores": []map[string]interface{}{{"name": "orders"}, {"name": "inventory", "hidden": true}}},
		{"name": "scratch", "project_name": "ecommerce", "has_content": false},
		{"name": "finance", "project_name": "accounting", "has_content": true},
	})
	api.handle("GET /api/4.0/lookml_models/{model}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("model") != "sales" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name": "sales", "project_name": "ecommerce", "has_content": true,
		})
	})
	client := newTestClient(t, api.server().URL)
	ctx := context.Background()

	tests := []struct {
		name    string
		project string
		model   string
		want    []string
		code    errors.ErrorCode
	}{
		{name: "all models with content", want: []string{"sales", "finance"}},
		{name: "by project", project: "accounting", want: []string{"finance"}},
		{name: "by model", model: "sales", want: []string{"sales"}},
		{name: "unknown model", model: "nope", want: []string{}},
		{name: "unknown project", project: "nope", code: errors.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := client.Models(ctx, tt.project, tt.model)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(models))
			for _, m := range models {
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExplore(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/lookml_models/sales/explores/orders", map[string]interface{}{
		"model_name": "sales",
		"name":       "orders",
		"fields": map[string]interface{}{
			"dimensions": []map[string]interface{}{{"name": "orders.id", "hidden": false}},
			"measures":   []map[string]interface{}{{"name": "orders.count", "hidden": false}},
			"filters":    []map[string]interface{}{},
		},
		"joins":  []map[string]interface{}{{"name": "customers", "sql_on": "${orders.customer_id} = ${customers.id}"}},
		"scopes": []string{"orders", "customers"},
	})
	client := newTestClient(t, api.server().URL)

	e, err := client.Explore(context.Background(), "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, "sales", e.Model)
	assert.Len(t, e.Fields.Dimensions, 1)
	require.Len(t, e.Joins, 1)
	require.NotNil(t, e.Joins[0].SQLOn)
	assert.Equal(t, []string{"orders", "customers"}, e.Scopes)

	_, err = client.Explore(context.Background(), "sales", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestUsage(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("history", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{
				"query.model": "sales", "query.view": "orders",
				"query.formatted_fields":  `["orders.count", "orders.status"]`,
				"query.formatted_filters": nil,
				"query.formatted_pivots":  nil,
				"query.sorts":             `["orders.count desc"]`,
				"history.query_run_count": 12,
			},
			{
				"query.model": "sales", "query.view": "orders",
				"query.formatted_fields":  `["customers.name"]`,
				"history.query_run_count": "3",
			},
		})
	})
	client := newTestClient(t, api.server().URL)

	rows, err := client.Usage(context.Background(), usage.Query{
		Granularity:   usage.GranularityFields,
		Models:        []string{"sales"},
		Views:         []string{"orders", "order_items"},
		TimeframeDays: 30,
		MinRunCount:   2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, usage.RawRow{
		Model:    "sales",
		Explore:  "orders",
		Fields:   `["orders.count", "orders.status"]`,
		Sorts:    `["orders.count desc"]`,
		RunCount: 12,
	}, rows[0])
	assert.Equal(t, 3, rows[1].RunCount)

	queries, _ := api.recorded()
	require.Len(t, queries, 1)
	q := queries[0]
	assert.Equal(t, "i__looker", q.Model)
	assert.Equal(t, "history", q.View)
	assert.Equal(t, "50000", q.Limit)
	assert.Equal(t, map[string]string{
		"history.created_date":    "30 days",
		"query.model":             "sales,-i^_^_looker",
		"query.view":              "orders,order^_items",
		"history.query_run_count": ">=2",
	}, q.Filters)
}

func TestUsageGranularityColumns(t *testing.T) {
	tests := []struct {
		granularity usage.Granularity
		fields      []string
	}{
		{usage.GranularityModels, []string{"query.model", "history.query_run_count"}},
		{usage.GranularityExplores, []string{"query.model", "query.view", "history.query_run_count"}},
		{usage.GranularityFields, []string{
			"query.model", "query.view", "query.formatted_fields", "query.formatted_filters",
			"query.sorts", "query.formatted_pivots", "history.query_run_count",
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			body := historyQuery(usage.Query{Granularity: tt.granularity, TimeframeDays: 90}, 0)
			assert.Equal(t, tt.fields, body.Fields)
			assert.Equal(t, "-i^_^_looker", body.Filters["query.model"])
			assert.NotContains(t, body.Filters, "query.view")
			assert.Empty(t, body.Limit)
		})
	}
}

func TestEscapeFilter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"orders", "orders"},
		{"order_items", "order^_items"},
		{"i__looker", "i^_^_looker"},
		{"50%_off", "50^%^_off"},
		{"a,b", "a^,b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeFilter(tt.in))
		})
	}
}

func TestUsageRejectsInvalidQuery(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.Usage(context.Background(), usage.Query{Granularity: usage.GranularityModels})
	require.Error(t, err)
	assert.Equal(t, errors.ScopeInvalid, errors.CodeOf(err))
}

func TestGitTests(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/projects/accounting/git_connection_tests", []map[string]string{
		{"id": "git_connect", "description": "Can connect"},
		{"id": "git_push", "description": "Can push"},
	})
	api.handle("GET /api/4.0/projects/accounting/git_connection_tests/{test}", func(w http.ResponseWriter, r *http.Request) {
		status := "pass"
		if r.PathValue("test") == "git_push" {
			status = "fail"
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("test"), "status": status})
	})
	client := newTestClient(t, api.server().URL)

	results, err := client.GitTests(context.Background(), "accounting")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed())
	assert.Equal(t, "git_push", results[1].ID)
	assert.False(t, results[1].Passed())
	_, sessions := api.recorded()
	assert.Equal(t, []string{"dev", "production"}, sessions)

	_, err = client.GitTests(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errors.ScopeInvalid, errors.CodeOf(err))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	api := newFakeAPI(t)
	api.handle("GET /api/4.0/lookml_models", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"name": "sales", "has_content": true}})
	})
	client := newTestClient(t, api.server().URL)

	models, err := client.Models(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, models, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhaustion(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.ErrorCode
	}{
		{"server error", http.StatusServiceUnavailable, errors.BackendUnavailable},
		{"rate limited", http.StatusTooManyRequests, errors.RateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			api := newFakeAPI(t)
			api.handle("GET /api/4.0/lookml_models", func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.status, map[string]string{"message": "busy"})
			})
			client := newTestClient(t, api.server().URL)

			_, err := client.Models(context.Background(), "", "")
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestReloginOnExpiredToken(t *testing.T) {
	var rejected atomic.Bool
	api := newFakeAPI(t)
	api.handle("GET /api/4.0/lookml_models", func(w http.ResponseWriter, _ *http.Request) {
		if rejected.CompareAndSwap(false, true) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]interface{}{})
	})
	client := newTestClient(t, api.server().URL)

	_, err := client.Models(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, api.loginCount())
}

func TestBadCredentials(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/lookml_models", []map[string]interface{}{})
	srv := api.server()

	cfg := config.DefaultConfig()
	cfg.Looker.BaseURL = srv.URL
	cfg.Looker.ClientID = "id"
	cfg.Looker.ClientSecret = "wrong"
	client, err := NewClient(cfg, slogutil.NewDiscardLogger())
	require.NoError(t, err)

	_, err = client.Models(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, errors.Unauthorized, errors.CodeOf(err))
}

func TestCancelledContext(t *testing.T) {
	api := newFakeAPI(t)
	api.json("GET /api/4.0/lookml_models", []map[string]interface{}{})
	client := newTestClient(t, api.server().URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Models(ctx, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	client := newTestClient(t, "https://bi.example.com/")
	info := client.Describe()
	assert.Equal(t, "api", info.Kind)
	assert.Equal(t, "https://bi.example.com", info.Location)
}

func TestDeadlineIsTimeout(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("GET /api/4.0/lookml_models", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := newTestClient(t, api.server().URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Models(ctx, "", "")
	require.Error(t, err)
	assert.Equal(t, errors.Timeout, errors.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
