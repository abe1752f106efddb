package projection

// SelectionPolicy decides what happens to checked ids that fall out of the
// filtered list.
type SelectionPolicy int

const (
	// PolicyPreserve keeps hidden ids selected until cleared or toggled.
	PolicyPreserve SelectionPolicy = iota
	// PolicyPrune drops hidden ids whenever the filtered list changes.
	PolicyPrune
)

func (p SelectionPolicy) String() string {
	if p == PolicyPrune {
		return "prune"
	}
	return "preserve"
}

// ParseSelectionPolicy maps "prune" to PolicyPrune and anything else to PolicyPreserve.
func ParseSelectionPolicy(s string) SelectionPolicy {
	if s == "prune" {
		return PolicyPrune
	}
	return PolicyPreserve
}

// Selection is the set of checked ids of one list view, kept in check order.
// It is not safe for concurrent use; views guard it.
type Selection struct {
	ids   map[string]struct{}
	order []string
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

func (s *Selection) Toggle(id string) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		for i, x := range s.order {
			if x == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

// SelectAll replaces the selection with filteredIDs.
func (s *Selection) SelectAll(filteredIDs []string) {
	s.Clear()
	for _, id := range filteredIDs {
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
	s.order = nil
}

func (s *Selection) IsSelected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

// IDs returns the selected ids in the order they were checked.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.order...)
}

// IsAllSelected is derived, never stored: the filtered list is non-empty and
// the selection is exactly the filtered id set.
func (s *Selection) IsAllSelected(filteredIDs []string) bool {
	if len(filteredIDs) == 0 || len(s.ids) != len(filteredIDs) {
		return false
	}
	for _, id := range filteredIDs {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}

// IsPartiallySelected drives the indeterminate state of the select-all box.
func (s *Selection) IsPartiallySelected(filteredIDs []string) bool {
	return len(s.ids) > 0 && !s.IsAllSelected(filteredIDs)
}

// Reconcile applies policy after the filtered list changed. It returns the ids
// it dropped.
func (s *Selection) Reconcile(filteredIDs []string, policy SelectionPolicy) []string {
	if policy != PolicyPrune {
		return nil
	}
	visible := make(map[string]struct{}, len(filteredIDs))
	for _, id := range filteredIDs {
		visible[id] = struct{}{}
	}
	var dropped []string
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := visible[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.ids, id)
		dropped = append(dropped, id)
	}
	s.order = kept
	return dropped
}
