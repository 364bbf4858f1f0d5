// Package identifier defines henry's canonical field path, model.explore.view.field,
// shared by the metadata and usage-log sides of every comparison.
package identifier

import (
	"strings"

	"henry/internal/errors"
)

// Separator joins path components.
const Separator = "."

// Components is the number of parts in a full field path.
const Components = 4

// FieldID identifies one field as seen through one explore.
// Components are lower-cased, trimmed and never contain Separator.
type FieldID struct {
	Model   string `json:"model"`
	Explore string `json:"explore"`
	View    string `json:"view"`
	Field   string `json:"field"`
}

// String returns the dot-joined path.
func (id FieldID) String() string {
	return strings.Join([]string{id.Model, id.Explore, id.View, id.Field}, Separator)
}

// ViewField drops the model and explore scoping.
func (id FieldID) ViewField() ViewField {
	return ViewField{View: id.View, Field: id.Field}
}

// Canonicalize builds a FieldID. Both the metadata path and the usage-log path go
// through here, so ids from either side compare equal whenever they name the same field.
func Canonicalize(model, explore, view, field string) (FieldID, error) {
	parts := [Components]string{model, explore, view, field}
	for i, p := range parts {
		c, err := component(p)
		if err != nil {
			return FieldID{}, errors.Newf(errors.MalformedIdentifier,
				"cannot build field id from %q: %v", strings.Join(parts[:], Separator), err)
		}
		parts[i] = c
	}
	return FieldID{Model: parts[0], Explore: parts[1], View: parts[2], Field: parts[3]}, nil
}

// Parse is the inverse of FieldID.String.
func Parse(s string) (FieldID, error) {
	parts := strings.Split(s, Separator)
	if len(parts) != Components {
		return FieldID{}, errors.Newf(errors.MalformedIdentifier,
			"field id %q has %d components, want %d", s, len(parts), Components)
	}
	return Canonicalize(parts[0], parts[1], parts[2], parts[3])
}

// Split returns the four components of a field id.
func Split(s string) (model, explore, view, field string, err error) {
	id, err := Parse(s)
	if err != nil {
		return "", "", "", "", err
	}
	return id.Model, id.Explore, id.View, id.Field, nil
}

// StripPrefix removes the first n components of a field id.
// StripPrefix(id, 2) gives the view.field form.
func StripPrefix(id string, n int) (string, error) {
	parts := strings.Split(id, Separator)
	if len(parts) != Components {
		return "", errors.Newf(errors.MalformedIdentifier,
			"field id %q has %d components, want %d", id, len(parts), Components)
	}
	if n < 0 || n >= Components {
		return "", errors.Newf(errors.MalformedIdentifier,
			"cannot strip %d components from %q", n, id)
	}
	return strings.Join(parts[n:], Separator), nil
}

// ViewOf returns the view component of a field id.
func ViewOf(id string) (string, error) {
	parsed, err := Parse(id)
	if err != nil {
		return "", err
	}
	return parsed.View, nil
}

// ViewField is a field path with model and explore scoping removed.
type ViewField struct {
	View  string `json:"view"`
	Field string `json:"field"`
}

// String returns view.field.
func (vf ViewField) String() string {
	return vf.View + Separator + vf.Field
}

// NewViewField canonicalizes a view and field name.
func NewViewField(view, field string) (ViewField, error) {
	v, err := component(view)
	if err != nil {
		return ViewField{}, errors.Newf(errors.MalformedIdentifier, "view %q: %v", view, err)
	}
	f, err := component(field)
	if err != nil {
		return ViewField{}, errors.Newf(errors.MalformedIdentifier, "field %q in view %q: %v", field, view, err)
	}
	return ViewField{View: v, Field: f}, nil
}

// ParseViewField parses a two-component view.field path.
func ParseViewField(s string) (ViewField, error) {
	parts := strings.Split(s, Separator)
	if len(parts) != 2 {
		return ViewField{}, errors.Newf(errors.MalformedIdentifier,
			"%q is not a view.field reference", s)
	}
	return NewViewField(parts[0], parts[1])
}

// Scoped prefixes a view.field with a model and explore.
func (vf ViewField) Scoped(model, explore string) (FieldID, error) {
	return Canonicalize(model, explore, vf.View, vf.Field)
}

// Name canonicalizes a single model, explore or view name.
func Name(s string) (string, error) {
	c, err := component(s)
	if err != nil {
		return "", errors.Newf(errors.MalformedIdentifier, "name %q: %v", s, err)
	}
	return c, nil
}

type componentError string

func (e componentError) Error() string { return string(e) }

func component(s string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(s))
	switch {
	case c == "":
		return "", componentError("empty component")
	case strings.Contains(c, Separator):
		return "", componentError("component contains " + Separator)
	}
	return c, nil
}
