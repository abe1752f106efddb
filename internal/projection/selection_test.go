package projection

import (
	"reflect"
	"testing"
)

func TestToggleFlipsMembership(t *testing.T) {
	s := NewSelection()
	s.Toggle("a")
	s.Toggle("b")
	if !s.IsSelected("a") || !s.IsSelected("b") || s.Len() != 2 {
		t.Fatalf("after toggles: %v", s.IDs())
	}
	s.Toggle("a")
	if s.IsSelected("a") || !reflect.DeepEqual(s.IDs(), []string{"b"}) {
		t.Errorf("after untoggle: %v", s.IDs())
	}
}

func TestSelectAllEqualsFilteredSet(t *testing.T) {
	s := NewSelection()
	s.Toggle("stale")
	filtered := []string{"a", "b", "c"}

	s.SelectAll(filtered)

	if !reflect.DeepEqual(s.IDs(), filtered) {
		t.Errorf("IDs = %v, want %v", s.IDs(), filtered)
	}
	if !s.IsAllSelected(filtered) {
		t.Error("IsAllSelected should be true right after SelectAll")
	}
}

func TestIsAllSelectedEdgeCases(t *testing.T) {
	s := NewSelection()
	if s.IsAllSelected(nil) {
		t.Error("empty filtered set is never all-selected")
	}
	s.SelectAll([]string{"a", "b"})
	if s.IsAllSelected([]string{"a", "c"}) {
		t.Error("equal size but different members must not count as all selected")
	}
	if !s.IsPartiallySelected([]string{"a", "b", "c"}) {
		t.Error("two of three should be partial")
	}
	s.Clear()
	if s.Len() != 0 || s.IsPartiallySelected([]string{"a"}) {
		t.Error("Clear should empty the selection")
	}
}

func TestStaleSelectionOfSameSizeIsNotAllSelected(t *testing.T) {
	s := NewSelection()
	s.SelectAll([]string{"DRV-A", "DRV-B"})

	filtered := []string{"DRV-C", "DRV-D"}
	if s.IsAllSelected(filtered) {
		t.Error("hidden ids matching the filtered count must not check select-all")
	}
	if !s.IsPartiallySelected(filtered) {
		t.Error("a non-empty stale selection should read as partial")
	}
}

func TestPreservePolicyKeepsStaleIDs(t *testing.T) {
	s := NewSelection()
	s.SelectAll([]string{"a", "b", "c", "d"})

	narrowed := []string{"a", "b"}
	if dropped := s.Reconcile(narrowed, PolicyPreserve); dropped != nil {
		t.Errorf("preserve dropped %v", dropped)
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d, want 4 (stale ids kept)", s.Len())
	}
	if s.IsAllSelected(narrowed) {
		t.Error("IsAllSelected must be false after narrowing until SelectAll runs again")
	}
	s.SelectAll(narrowed)
	if !s.IsAllSelected(narrowed) {
		t.Error("SelectAll on the narrowed set should make it all-selected")
	}
}

func TestPrunePolicyDropsHiddenIDs(t *testing.T) {
	s := NewSelection()
	s.SelectAll([]string{"a", "b", "c", "d"})

	dropped := s.Reconcile([]string{"b", "d", "e"}, PolicyPrune)

	if !reflect.DeepEqual(dropped, []string{"a", "c"}) {
		t.Errorf("dropped = %v", dropped)
	}
	if !reflect.DeepEqual(s.IDs(), []string{"b", "d"}) {
		t.Errorf("kept = %v", s.IDs())
	}
}

func TestParseSelectionPolicy(t *testing.T) {
	if ParseSelectionPolicy("prune") != PolicyPrune {
		t.Error("prune")
	}
	if ParseSelectionPolicy("") != PolicyPreserve || ParseSelectionPolicy("other") != PolicyPreserve {
		t.Error("default should be preserve")
	}
	if PolicyPrune.String() != "prune" || PolicyPreserve.String() != "preserve" {
		t.Error("String")
	}
}
