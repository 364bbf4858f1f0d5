// Package metadata holds the semantic-layer model (projects, models, explores,
// fields and joins) and normalizes explore metadata into canonical field ids.
//
// JSON tags follow the BI API's field names so API responses and snapshot files
// decode into the same types.
package metadata

// FileType tags a project file.
type FileType string

const (
	FileTypeModel FileType = "model"
	FileTypeView  FileType = "view"
	FileTypeOther FileType = "other"
)

// ProjectFile is one file in a project's repository.
type ProjectFile struct {
	ID   string   `json:"id" yaml:"id" toml:"id"`
	Type FileType `json:"type" yaml:"type" toml:"type"`
}

// Project is a semantic-layer project.
type Project struct {
	Name               string        `json:"name" yaml:"name" toml:"name"`
	PullRequestMode    string        `json:"pull_request_mode" yaml:"pull_request_mode" toml:"pull_request_mode"`
	ValidationRequired bool          `json:"validation_required" yaml:"validation_required" toml:"validation_required"`
	GitRemoteURL       string        `json:"git_remote_url,omitempty" yaml:"git_remote_url,omitempty" toml:"git_remote_url,omitempty"`
	Files              []ProjectFile `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
}

// CountFiles returns the number of model and view files in the project.
func (p Project) CountFiles() (models, views int) {
	for _, f := range p.Files {
		switch f.Type {
		case FileTypeModel:
			models++
		case FileTypeView:
			views++
		}
	}
	return models, views
}

// ExploreSummary is the explore listing embedded in a model.
type ExploreSummary struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Hidden bool   `json:"hidden,omitempty" yaml:"hidden,omitempty" toml:"hidden,omitempty"`
}

// Model is a semantic-layer model.
type Model struct {
	Name       string           `json:"name" yaml:"name" toml:"name"`
	Project    string           `json:"project_name" yaml:"project_name" toml:"project_name"`
	HasContent bool             `json:"has_content" yaml:"has_content" toml:"has_content"`
	Explores   []ExploreSummary `json:"explores,omitempty" yaml:"explores,omitempty" toml:"explores,omitempty"`
}

// ExploreNames returns the names of the model's explores in listing order.
func (m Model) ExploreNames() []string {
	names := make([]string, len(m.Explores))
	for i, e := range m.Explores {
		names[i] = e.Name
	}
	return names
}

// FieldKind is the field-picker category of a field.
type FieldKind string

const (
	KindDimension FieldKind = "dimension"
	KindMeasure   FieldKind = "measure"
	KindFilter    FieldKind = "filter"
)

// Field is one field-picker entry. Name is the view-qualified view.field form.
type Field struct {
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Hidden      bool      `json:"hidden" yaml:"hidden" toml:"hidden"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Kind        FieldKind `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
}

// ExploreFields groups an explore's fields by category.
type ExploreFields struct {
	Dimensions []Field `json:"dimensions" yaml:"dimensions" toml:"dimensions"`
	Measures   []Field `json:"measures" yaml:"measures" toml:"measures"`
	Filters    []Field `json:"filters" yaml:"filters" toml:"filters"`
}

// Join is one join of an explore. SQLOn is nil for joins without an ON clause
// (sql_where, foreign_key or cross joins).
type Join struct {
	Name  string  `json:"name" yaml:"name" toml:"name"`
	SQLOn *string `json:"sql_on" yaml:"sql_on,omitempty" toml:"sql_on,omitempty"`
}

// Explore is the full metadata of one explore.
type Explore struct {
	Model       string        `json:"model_name" yaml:"model_name" toml:"model_name"`
	Name        string        `json:"name" yaml:"name" toml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Hidden      bool          `json:"hidden" yaml:"hidden" toml:"hidden"`
	Fields      ExploreFields `json:"fields" yaml:"fields" toml:"fields"`
	Joins       []Join        `json:"joins" yaml:"joins" toml:"joins"`
	// Scopes lists every view name reachable in the explore, as reported by the API.
	Scopes []string `json:"scopes" yaml:"scopes" toml:"scopes"`
}

// GitTestResult is the outcome of one git connection test.
type GitTestResult struct {
	ID     string `json:"id" yaml:"id" toml:"id"`
	Status string `json:"status" yaml:"status" toml:"status"`
}

// Passed reports whether the test passed.
func (r GitTestResult) Passed() bool {
	return r.Status == "pass"
}
