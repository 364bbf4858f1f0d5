package metadata

import (
	"regexp"
	"sort"
	"strings"

	"henry/internal/identifier"
)

// joinRefPattern extracts the content of each {...} block in a join's sql_on.
var joinRefPattern = regexp.MustCompile(`\{(.*?)\}`)

// ExposedField is a field visible in the field picker, in canonical form.
type ExposedField struct {
	ID          identifier.FieldID
	Hidden      bool
	Description string
	Kind        FieldKind
}

// categories returns the explore's field lists in dimension, measure, filter order.
func (e *Explore) categories() []struct {
	kind   FieldKind
	fields []Field
} {
	return []struct {
		kind   FieldKind
		fields []Field
	}{
		{KindDimension, e.Fields.Dimensions},
		{KindMeasure, e.Fields.Measures},
		{KindFilter, e.Fields.Filters},
	}
}

// ExposedFieldRecords returns every non-hidden dimension, measure and filter as a
// canonical record, sorted by id. A field listed under two categories appears once,
// with the first category it was found in.
func ExposedFieldRecords(e *Explore) ([]ExposedField, error) {
	seen := make(map[identifier.FieldID]bool)
	var out []ExposedField
	for _, cat := range e.categories() {
		for _, f := range cat.fields {
			if f.Hidden {
				continue
			}
			vf, err := identifier.ParseViewField(f.Name)
			if err != nil {
				return nil, err
			}
			id, err := vf.Scoped(e.Model, e.Name)
			if err != nil {
				return nil, err
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, ExposedField{ID: id, Description: f.Description, Kind: cat.kind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// ExposedFields returns the canonical ids of every non-hidden field in the explore.
func ExposedFields(e *Explore) (identifier.Set[identifier.FieldID], error) {
	records, err := ExposedFieldRecords(e)
	if err != nil {
		return nil, err
	}
	set := make(identifier.Set[identifier.FieldID], len(records))
	for _, r := range records {
		set.Add(r.ID)
	}
	return set, nil
}

// JoinReferencedFields returns the view.field references in the explore's join
// conditions. These fields are used by the join itself whatever the query volume.
// Brace blocks without a dot ({TABLE}) and Liquid blocks are not field references;
// any other block with a dot must be a clean view.field.
func JoinReferencedFields(e *Explore) (identifier.Set[identifier.ViewField], error) {
	refs := make(identifier.Set[identifier.ViewField])
	for _, j := range e.Joins {
		if j.SQLOn == nil {
			continue
		}
		for _, m := range joinRefPattern.FindAllStringSubmatch(*j.SQLOn, -1) {
			ref := strings.TrimSpace(m[1])
			if !strings.Contains(ref, identifier.Separator) || isLiquid(ref) {
				continue
			}
			vf, err := identifier.ParseViewField(ref)
			if err != nil {
				return nil, err
			}
			refs.Add(vf)
		}
	}
	return refs, nil
}

// isLiquid reports whether a brace block is a Liquid tag or output rather than a
// field reference.
func isLiquid(ref string) bool {
	return strings.HasPrefix(ref, "%") || strings.HasPrefix(ref, "{")
}

// Scope returns every view name reachable in the explore: the explore's own name
// (the base view marker), each join's name and the scopes reported by the API.
func Scope(e *Explore) (identifier.Set[string], error) {
	base, err := identifier.Name(e.Name)
	if err != nil {
		return nil, err
	}
	scope := identifier.NewSet(base)
	for _, j := range e.Joins {
		name, err := identifier.Name(j.Name)
		if err != nil {
			return nil, err
		}
		scope.Add(name)
	}
	for _, s := range e.Scopes {
		name, err := identifier.Name(s)
		if err != nil {
			return nil, err
		}
		scope.Add(name)
	}
	return scope, nil
}

// Joins returns the explore's scope without the explore's own name.
func Joins(e *Explore) (identifier.Set[string], error) {
	scope, err := Scope(e)
	if err != nil {
		return nil, err
	}
	base, err := identifier.Name(e.Name)
	if err != nil {
		return nil, err
	}
	delete(scope, base)
	return scope, nil
}

// CountDimensions returns the number of dimensions, hidden ones included.
func CountDimensions(e *Explore) int {
	return len(e.Fields.Dimensions)
}

// CountMeasures returns the number of measures, hidden ones included.
func CountMeasures(e *Explore) int {
	return len(e.Fields.Measures)
}

// CountMissingDescriptions counts dimensions and measures without a description.
func CountMissingDescriptions(e *Explore) int {
	n := 0
	for _, fields := range [][]Field{e.Fields.Dimensions, e.Fields.Measures} {
		for _, f := range fields {
			if strings.TrimSpace(f.Description) == "" {
				n++
			}
		}
	}
	return n
}
