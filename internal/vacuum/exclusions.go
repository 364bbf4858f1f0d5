package vacuum

import (
	"path/filepath"
	"strings"

	"henry/internal/identifier"
)

// noiseVocabulary marks time-grain variants of a dimension group. They come and go
// with the group and are not worth flagging one by one.
var noiseVocabulary = []string{"week", "quarter", "year", "month", "raw", "date", "time"}

// ExclusionRules determines which fields are kept out of the view-grouped report.
type ExclusionRules struct {
	patterns []string
}

// NewExclusionRules creates exclusion rules with extra glob patterns matched
// against view.field.
func NewExclusionRules(patterns []string) *ExclusionRules {
	return &ExclusionRules{
		patterns: patterns,
	}
}

// ShouldExclude returns a reason if the field should be excluded, or empty string if not.
func (r *ExclusionRules) ShouldExclude(field identifier.ViewField) string {
	// 1. Keys and counts are navigational and always kept
	if isProtected(field.Field) {
		return "protected key or count field"
	}

	// 2. Time-grain variants
	if word := noiseWord(field.Field); word != "" {
		return "time-grain variant (" + word + ")"
	}

	// 3. User-defined exclusion patterns
	if r == nil {
		return ""
	}
	for _, pattern := range r.patterns {
		if matched, _ := filepath.Match(pattern, field.String()); matched {
			return "matches exclusion pattern: " + pattern
		}
		if matched, _ := filepath.Match(pattern, field.Field); matched {
			return "matches exclusion pattern: " + pattern
		}
	}

	return ""
}

// isProtected reports whether a field name is id, count, or has id as one of
// its underscore-separated tokens.
func isProtected(name string) bool {
	if name == "id" || name == "count" {
		return true
	}
	for _, token := range strings.Split(name, "_") {
		if token == "id" {
			return true
		}
	}
	return false
}

// noiseWord returns the first noise word contained in name.
func noiseWord(name string) string {
	for _, w := range noiseVocabulary {
		if strings.Contains(name, w) {
			return w
		}
	}
	return ""
}

// IsDynamicView reports whether a view name contains a digit. Such views are
// usually generated (derived tables, numbered copies) and are skipped when
// grouping by view.
func IsDynamicView(view string) bool {
	return strings.ContainsAny(view, "0123456789")
}
