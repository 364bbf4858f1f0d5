// Package usage turns query-history rows into run counts per canonical field id.
//
// Each history row names the model and explore it ran against and carries four
// free-text blobs (formatted fields, formatted filters, formatted pivots, sorts)
// in which fields appear as view.field tokens. A token is credited with the row's
// run count once per occurrence, so a field that is both selected and filtered on
// counts twice for that row.
package usage

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"henry/internal/errors"
	"henry/internal/identifier"
)

// tokenPattern is the grammar for field references inside history text: a run of
// word characters, one dot, another run of word characters. Matches are leftmost
// and non-overlapping, so a.b.c yields only a.b.
var tokenPattern = regexp.MustCompile(`\w+\.\w+`)

// RawRow is one row of the query-history result.
type RawRow struct {
	Model    string `json:"model" yaml:"model" toml:"model"`
	Explore  string `json:"explore" yaml:"explore" toml:"explore"`
	Fields   string `json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields,omitempty"`
	Filters  string `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
	Pivots   string `json:"pivots,omitempty" yaml:"pivots,omitempty" toml:"pivots,omitempty"`
	Sorts    string `json:"sorts,omitempty" yaml:"sorts,omitempty" toml:"sorts,omitempty"`
	RunCount int    `json:"runCount" yaml:"runCount" toml:"runCount"`
}

// blobs returns the text blobs in a fixed order.
func (r RawRow) blobs() []string {
	return []string{r.Fields, r.Filters, r.Pivots, r.Sorts}
}

// ExtractTokens returns every view.field token in text, in order of appearance.
// Duplicates are kept.
func ExtractTokens(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(text, -1)
}

// Counts maps canonical field ids to summed run counts.
type Counts map[identifier.FieldID]int

// Aggregate sums run counts per field id across rows.
// Negative run counts and tokens that cannot be canonicalized are reported as
// malformed identifiers rather than skipped; skipping would understate usage.
func Aggregate(rows []RawRow) (Counts, error) {
	counts := make(Counts)
	for i, row := range rows {
		if row.RunCount < 0 {
			return nil, errors.Newf(errors.MalformedIdentifier,
				"history row %d (%s.%s) has negative run count %d", i, row.Model, row.Explore, row.RunCount)
		}
		for _, blob := range row.blobs() {
			for _, token := range ExtractTokens(blob) {
				vf, err := identifier.ParseViewField(token)
				if err != nil {
					return nil, err
				}
				id, err := vf.Scoped(row.Model, row.Explore)
				if err != nil {
					return nil, err
				}
				counts[id] += row.RunCount
			}
		}
	}
	return counts, nil
}

// Keys returns the used field ids in sorted order.
func (c Counts) Keys() []identifier.FieldID {
	return c.Set().Sorted()
}

// Set returns the used field ids.
func (c Counts) Set() identifier.Set[identifier.FieldID] {
	s := make(identifier.Set[identifier.FieldID], len(c))
	for id := range c {
		s.Add(id)
	}
	return s
}

// Get returns the run count for id, zero when unused.
func (c Counts) Get(id identifier.FieldID) int {
	return c[id]
}

// ForExplore returns the counts recorded against one model and explore.
func (c Counts) ForExplore(model, explore string) Counts {
	out := make(Counts)
	for id, n := range c {
		if id.Model == model && id.Explore == explore {
			out[id] = n
		}
	}
	return out
}

// Views returns every view with at least one used field.
func (c Counts) Views() identifier.Set[string] {
	views := make(identifier.Set[string])
	for id := range c {
		views.Add(id.View)
	}
	return views
}

// Stripped sums counts at view.field granularity, dropping model and explore.
func (c Counts) Stripped() map[identifier.ViewField]int {
	out := make(map[identifier.ViewField]int, len(c))
	for id, n := range c {
		out[id.ViewField()] += n
	}
	return out
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Key selects the row column a Lookup is keyed by.
type Key int

const (
	// KeyModel keys by the row's model name.
	KeyModel Key = iota
	// KeyExplore keys by the row's explore name.
	KeyExplore
)

// Lookup maps a model or explore name to its summed run count.
type Lookup map[string]int

// AggregateBy sums run counts keyed directly by the row's model or explore name.
// Text blobs are ignored. Rows with a blank key (history entries without a
// query, such as SQL Runner runs) can match no model or explore; they are left
// out and reported once at warn level. A key containing the separator is still
// malformed.
func AggregateBy(rows []RawRow, key Key, logger *slog.Logger) (Lookup, error) {
	lookup := make(Lookup)
	skipped, skippedRuns := 0, 0
	for i, row := range rows {
		if row.RunCount < 0 {
			return nil, errors.Newf(errors.MalformedIdentifier,
				"history row %d (%s.%s) has negative run count %d", i, row.Model, row.Explore, row.RunCount)
		}
		raw := row.Model
		if key == KeyExplore {
			raw = row.Explore
		}
		if strings.TrimSpace(raw) == "" {
			skipped++
			skippedRuns += row.RunCount
			continue
		}
		name, err := identifier.Name(raw)
		if err != nil {
			return nil, err
		}
		lookup[name] += row.RunCount
	}
	if skipped > 0 {
		logger.Warn("Skipping history rows without a "+key.String()+" name",
			"rows", skipped, "runs", skippedRuns)
	}
	return lookup, nil
}

func (k Key) String() string {
	if k == KeyExplore {
		return "explore"
	}
	return "model"
}

// Get returns the run count for name, zero when absent.
func (l Lookup) Get(name string) int {
	return l[name]
}

// Keys returns the names with a recorded count, sorted.
func (l Lookup) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
