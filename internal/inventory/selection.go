package inventory

import "sort"

// Selection is the set of package names marked for a batch action. It is
// keyed by name only, so membership does not depend on the active filter.
type Selection struct {
	names map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{names: make(map[string]struct{})}
}

// Toggle flips the membership of name and reports whether it is now selected.
func (s *Selection) Toggle(name string) bool {
	if _, ok := s.names[name]; ok {
		delete(s.names, name)
		return false
	}
	s.names[name] = struct{}{}
	return true
}

// SelectAllVisible adds every visible row to the selection. Names outside the
// visible set keep their current membership.
func (s *Selection) SelectAllVisible(visible []Row) {
	for _, r := range visible {
		s.names[r.Name] = struct{}{}
	}
}

// Contains reports whether name is selected. A nil selection contains nothing.
func (s *Selection) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Count returns the number of selected names.
func (s *Selection) Count() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the selected names sorted.
func (s *Selection) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	c := NewSelection()
	if s == nil {
		return c
	}
	for name := range s.names {
		c.names[name] = struct{}{}
	}
	return c
}

// Clear removes every name.
func (s *Selection) Clear() {
	s.names = make(map[string]struct{})
}
