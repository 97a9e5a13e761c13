// Package selection derives the select-all control from the rendered list's
// checkboxes and runs bulk deletes against it.
package selection

// SelectAllState is what the select-all checkbox and the delete button show.
type SelectAllState struct {
	Checked       bool
	Indeterminate bool
	DeleteEnabled bool
	Visible       bool // false while there are no files
}

// Aggregate computes the select-all state from the number of checked rows
// and the total number of file rows.
func Aggregate(checked, total int) SelectAllState {
	s := SelectAllState{Visible: total > 0}
	switch {
	case total == 0 || checked <= 0:
	case checked >= total:
		s.Checked = true
		s.DeleteEnabled = true
	default:
		s.Indeterminate = true
		s.DeleteEnabled = true
	}
	return s
}

// String renders the state as a checkbox glyph.
func (s SelectAllState) String() string {
	switch {
	case !s.Visible:
		return "hidden"
	case s.Checked:
		return "[x]"
	case s.Indeterminate:
		return "[-]"
	default:
		return "[ ]"
	}
}
