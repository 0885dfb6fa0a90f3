package xconf

import (
	"slices"
	"testing"
)

func TestSection_ZeroValueIsAbsent(t *testing.T) {
	var s Section[int]

	if s.Present() {
		t.Error("zero Section should be absent")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if s.Items() != nil {
		t.Errorf("Items = %v, want nil", s.Items())
	}
}

func TestSection_NewSectionIsPresentEvenWhenEmpty(t *testing.T) {
	s := NewSection[int]()

	if !s.Present() {
		t.Error("NewSection() should be present")
	}
	if s.Items() == nil {
		t.Error("Items of a present section should not be nil")
	}
}

func TestSection_Append(t *testing.T) {
	var s Section[string]
	s.Append("a")
	s.Append("b")

	if !s.Present() {
		t.Error("Append should make the section present")
	}
	if got := s.Items(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Items = %v, want [a b]", got)
	}
}

func TestSection_Remove(t *testing.T) {
	tests := []struct {
		name        string
		items       []string
		index       int
		wantRemoved bool
		wantItems   []string
		wantPresent bool
	}{
		{"first", []string{"a", "b", "c"}, 0, true, []string{"b", "c"}, true},
		{"middle", []string{"a", "b", "c"}, 1, true, []string{"a", "c"}, true},
		{"last", []string{"a", "b", "c"}, 2, true, []string{"a", "b"}, true},
		{"only element", []string{"a"}, 0, true, nil, false},
		{"past end", []string{"a", "b"}, 2, false, []string{"a", "b"}, true},
		{"negative", []string{"a", "b"}, -1, false, []string{"a", "b"}, true},
		{"present empty", []string{}, 0, false, []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSection(tt.items...)

			removed := s.Remove(tt.index)

			if removed != tt.wantRemoved {
				t.Errorf("Remove(%d) = %v, want %v", tt.index, removed, tt.wantRemoved)
			}
			if s.Present() != tt.wantPresent {
				t.Errorf("Present = %v, want %v", s.Present(), tt.wantPresent)
			}
			if got := s.Items(); !slices.Equal(got, tt.wantItems) {
				t.Errorf("Items = %v, want %v", got, tt.wantItems)
			}
		})
	}
}

func TestSection_RemoveOnAbsentIsNoop(t *testing.T) {
	var s Section[int]

	if s.Remove(0) {
		t.Error("Remove on an absent section should report false")
	}
	if s.Present() {
		t.Error("Remove should not make the section present")
	}
}

func TestSection_ItemsIsACopy(t *testing.T) {
	s := NewSection(1, 2)
	items := s.Items()
	items[0] = 42

	if s.At(0) != 1 {
		t.Errorf("At(0) = %d, want 1", s.At(0))
	}
}

func TestSection_AtOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected At to panic for an out of range index")
		}
	}()

	s := NewSection(1)
	_ = s.At(1)
}
