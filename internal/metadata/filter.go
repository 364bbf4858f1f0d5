package metadata

import (
	"henry/internal/errors"
)

// FilterModels applies the project and model filters to a model listing and drops
// models without content.
//
// A model filter wins over a project filter since model names are unique across
// projects. An unknown project is a not-found error; an unknown model yields an
// empty list, which callers report as an empty result.
func FilterModels(models []Model, project, model string) ([]Model, error) {
	var out []Model
	switch {
	case model != "":
		for _, m := range models {
			if m.Name == model {
				out = append(out, m)
			}
		}
	case project != "":
		for _, m := range models {
			if m.Project == project {
				out = append(out, m)
			}
		}
		if len(out) == 0 {
			return nil, errors.Newf(errors.NotFound, "project %q not found", project)
		}
	default:
		out = append(out, models...)
	}

	withContent := out[:0]
	for _, m := range out {
		if m.HasContent {
			withContent = append(withContent, m)
		}
	}
	return withContent, nil
}

// FilterProjects keeps the named project, or every project when name is empty.
// An unknown project is a not-found error.
func FilterProjects(projects []Project, name string) ([]Project, error) {
	if name == "" {
		return projects, nil
	}
	for _, p := range projects {
		if p.Name == name {
			return []Project{p}, nil
		}
	}
	return nil, errors.Newf(errors.NotFound, "project %q not found", name)
}
