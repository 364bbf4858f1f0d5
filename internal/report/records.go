package report

// Record field json tags are the report column names, in column order. An
// `empty` tag is what table and plain output show for an empty list.

// VacuumModel is a row of vacuum models.
type VacuumModel struct {
	Model              string   `json:"model"`
	UnusedExplores     []string `json:"unused_explores" empty:"None"`
	ModelQueryRunCount int      `json:"model_query_run_count"`
}

// VacuumExplore is a row of vacuum explores. When AllFieldsUnused is set no view
// of the explore appears in the history and UnusedFields holds only the ALL marker.
type VacuumExplore struct {
	Model           string   `json:"model"`
	Explore         string   `json:"explore"`
	UnusedJoins     []string `json:"unused_joins" empty:"N/A"`
	UnusedFields    []string `json:"unused_fields"`
	AllFieldsUnused bool     `json:"all_fields_unused"`
}

// VacuumField is a row of vacuum fields.
type VacuumField struct {
	View         string   `json:"view"`
	UnusedFields []string `json:"unused_fields"`
}

// AnalyzeProject is a row of analyze projects.
type AnalyzeProject struct {
	Project             string `json:"project"`
	ModelCount          int    `json:"model_count"`
	ViewCount           int    `json:"view_count"`
	GitConnectionStatus string `json:"git_connection_status"`
	PullRequestMode     string `json:"pull_request_mode"`
	ValidationRequired  bool   `json:"validation_required"`
}

// AnalyzeModel is a row of analyze models.
type AnalyzeModel struct {
	Project        string `json:"project"`
	Model          string `json:"model"`
	ExploreCount   int    `json:"explore_count"`
	UnusedExplores int    `json:"unused_explores"`
	QueryRunCount  int    `json:"query_run_count"`
}

// AnalyzeExplore is a row of analyze explores.
type AnalyzeExplore struct {
	Model          string `json:"model"`
	Explore        string `json:"explore"`
	IsHidden       bool   `json:"is_hidden"`
	HasDescription bool   `json:"has_description"`
	JoinCount      int    `json:"join_count"`
	UnusedJoins    int    `json:"unused_joins"`
	FieldCount     int    `json:"field_count"`
	UnusedFields   int    `json:"unused_fields"`
	QueryCount     int    `json:"query_count"`
}

// AnalyzeField is a row of analyze fields.
type AnalyzeField struct {
	Model              string `json:"model"`
	Explore            string `json:"explore"`
	FieldCount         int    `json:"field_count"`
	UnusedFields       int    `json:"unused_fields"`
	MissingDescription int    `json:"missing_description"`
	Dimensions         int    `json:"dimensions"`
	Measures           int    `json:"measures"`
}
