package xconf

// Section is an ordered list of declarations that is either absent from the
// document or present with zero or more entries. The zero value is absent.
type Section[T any] struct {
	items   []T
	present bool
}

// NewSection returns a present section holding items.
func NewSection[T any](items ...T) Section[T] {
	return Section[T]{items: append([]T(nil), items...), present: true}
}

// Present reports whether the section exists, even if it is empty.
func (s *Section[T]) Present() bool {
	return s.present
}

// Len returns the number of entries; an absent section has none.
func (s *Section[T]) Len() int {
	return len(s.items)
}

// At returns the entry at i. It panics if i is out of range.
func (s *Section[T]) At(i int) T {
	return s.items[i]
}

// Items returns a copy of the entries, or nil when the section is absent.
func (s *Section[T]) Items() []T {
	if !s.present {
		return nil
	}
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Append adds v at the end. The section is present afterwards.
func (s *Section[T]) Append(v T) {
	s.items = append(s.items, v)
	s.present = true
}

// Remove deletes the entry at i, keeping the order of the others. Removing the
// only entry makes the section absent. It returns false, leaving the section
// untouched, when i is not a current index.
func (s *Section[T]) Remove(i int) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	if len(s.items) == 1 {
		*s = Section[T]{}
		return true
	}
	next := make([]T, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	s.items = next
	return true
}
