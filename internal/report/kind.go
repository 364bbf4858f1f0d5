// Package report defines henry's report kinds, their typed records, and how a
// report is sorted, limited and rendered.
package report

import (
	"reflect"
	"strings"

	"henry/internal/errors"
)

// Kind is a closed enumeration of report kinds.
type Kind string

const (
	VacuumModels    Kind = "vacuum-models"
	VacuumExplores  Kind = "vacuum-explores"
	VacuumFields    Kind = "vacuum-fields"
	AnalyzeProjects Kind = "analyze-projects"
	AnalyzeModels   Kind = "analyze-models"
	AnalyzeExplores Kind = "analyze-explores"
	AnalyzeFields   Kind = "analyze-fields"
)

// AllKinds returns every report kind in command order.
func AllKinds() []Kind {
	return []Kind{
		VacuumModels, VacuumExplores, VacuumFields,
		AnalyzeProjects, AnalyzeModels, AnalyzeExplores, AnalyzeFields,
	}
}

// ParseKind accepts "vacuum-models" or "vacuum models".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.Join(strings.Fields(strings.ToLower(s)), "-"))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.Newf(errors.ScopeInvalid, "unknown report kind %q", s)
}

// Command returns the command family, vacuum or analyze.
func (k Kind) Command() string {
	cmd, _, _ := strings.Cut(string(k), "-")
	return cmd
}

// Subject returns what the report is about: models, explores, fields or projects.
func (k Kind) Subject() string {
	_, subject, _ := strings.Cut(string(k), "-")
	return subject
}

// RecordType returns the record struct type of the kind.
func (k Kind) RecordType() reflect.Type {
	switch k {
	case VacuumModels:
		return reflect.TypeOf(VacuumModel{})
	case VacuumExplores:
		return reflect.TypeOf(VacuumExplore{})
	case VacuumFields:
		return reflect.TypeOf(VacuumField{})
	case AnalyzeProjects:
		return reflect.TypeOf(AnalyzeProject{})
	case AnalyzeModels:
		return reflect.TypeOf(AnalyzeModel{})
	case AnalyzeExplores:
		return reflect.TypeOf(AnalyzeExplore{})
	case AnalyzeFields:
		return reflect.TypeOf(AnalyzeField{})
	}
	return nil
}

// Sortable reports whether the kind accepts --sortkey and --limit.
// Only analyze reports do.
func (k Kind) Sortable() bool {
	return k.Command() == "analyze"
}
