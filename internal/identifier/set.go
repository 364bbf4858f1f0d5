package identifier

import (
	"fmt"
	"sort"
)

// Set is an unordered collection whose output order is always Sorted.
type Set[T comparable] map[T]struct{}

// NewSet creates a set holding items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts item.
func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

// Has reports whether item is present.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of items.
func (s Set[T]) Len() int {
	return len(s)
}

// Union returns the items in s or other.
func (s Set[T]) Union(other Set[T]) Set[T] {
	out := make(Set[T], len(s)+len(other))
	for item := range s {
		out[item] = struct{}{}
	}
	for item := range other {
		out[item] = struct{}{}
	}
	return out
}

// Difference returns the items in s that are not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	out := make(Set[T])
	for item := range s {
		if !other.Has(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Intersect returns the items in both s and other.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	out := make(Set[T])
	for item := range s {
		if other.Has(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Sorted returns the items ordered by their string form.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

// Strings returns the sorted string forms.
func (s Set[T]) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, item := range sorted {
		out[i] = sortKey(item)
	}
	return out
}

func sortKey[T comparable](v T) string {
	switch x := any(v).(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
