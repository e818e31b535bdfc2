// Package permissions defines domain types for runtime capability negotiation.
package permissions

import "sort"

// Set is an unordered collection of capability names.
type Set map[string]struct{}

// NewSet creates a set holding the given names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into the set.
func (s Set) Add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

// Remove deletes names from the set.
func (s Set) Remove(names ...string) {
	for _, name := range names {
		delete(s, name)
	}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names in the set.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the names present in both sets.
func (s Set) Intersect(other Set) Set {
	out := make(Set)
	for name := range s {
		if other.Has(name) {
			out[name] = struct{}{}
		}
	}
	return out
}

// Difference returns the names in s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make(Set)
	for name := range s {
		if !other.Has(name) {
			out[name] = struct{}{}
		}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}
