package column

import (
	"fmt"
	"sort"
)

// Set is an addressable store of named flat arrays. Insertion order is
// preserved for reporting; lookup is by exact name.
type Set struct {
	arrays map[string]Array
	order  []string
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{arrays: make(map[string]Array)}
}

// Add registers an array under name; duplicate names are rejected
func (s *Set) Add(name string, a Array) error {
	if _, exists := s.arrays[name]; exists {
		return fmt.Errorf("column %q already exists", name)
	}
	s.arrays[name] = a
	s.order = append(s.order, name)
	return nil
}

// Get retrieves an array by name
func (s *Set) Get(name string) (Array, bool) {
	a, ok := s.arrays[name]
	return a, ok
}

// Names returns all column names in insertion order
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SortedNames returns all column names sorted lexically
func (s *Set) SortedNames() []string {
	out := s.Names()
	sort.Strings(out)
	return out
}

// Len returns the number of columns
func (s *Set) Len() int { return len(s.arrays) }
