// Package ordering holds the pure position logic shared by every ordered
// collection: a user's folders, a folder's prompts, quick-access folders and
// the items inside them. All operations re-index the full scope so that the
// result is a contiguous 0..n-1 permutation even when the input was not.
package ordering

import (
	"sort"
)

// Ref is an entity's id plus its rank within one parent scope.
type Ref struct {
	ID       string
	Position int
}

// NextPosition returns the append-at-end position: max existing position
// plus one, or 0 for an empty scope.
func NextPosition(list []Ref) int {
	next := 0
	for _, ref := range list {
		if ref.Position >= next {
			next = ref.Position + 1
		}
	}
	return next
}

// Sorted returns a copy ordered by position, ties broken by id so the
// result is deterministic for non-contiguous input.
func Sorted(list []Ref) []Ref {
	out := append([]Ref(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].ID < out[j].ID
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// Reindex assigns every element's position to its array index.
func Reindex(list []Ref) []Ref {
	out := append([]Ref(nil), list...)
	for i := range out {
		out[i].Position = i
	}
	return out
}

// Reorder removes movedID from the scope and reinserts it at newIndex, then
// re-indexes every element. The boolean is false when movedID is absent; the
// returned list is then the re-indexed input, which callers may persist or
// ignore. Moving an element to its current index is an idempotent no-op.
func Reorder(list []Ref, movedID string, newIndex int) ([]Ref, bool) {
	ordered := Sorted(list)
	idx := indexOf(ordered, movedID)
	if idx < 0 {
		return Reindex(ordered), false
	}
	moved := ordered[idx]
	rest := append(append([]Ref(nil), ordered[:idx]...), ordered[idx+1:]...)
	newIndex = clamp(newIndex, 0, len(rest))
	out := make([]Ref, 0, len(ordered))
	out = append(out, rest[:newIndex]...)
	out = append(out, moved)
	out = append(out, rest[newIndex:]...)
	return Reindex(out), true
}

// Remove deletes id from the scope and compacts the remaining positions.
func Remove(list []Ref, id string) ([]Ref, bool) {
	ordered := Sorted(list)
	idx := indexOf(ordered, id)
	if idx < 0 {
		return Reindex(ordered), false
	}
	out := append(append([]Ref(nil), ordered[:idx]...), ordered[idx+1:]...)
	return Reindex(out), true
}

// MoveAcross removes id from the source scope and inserts it into the
// destination scope at destIndex, re-indexing both.
func MoveAcross(source, dest []Ref, id string, destIndex int) (newSource, newDest []Ref, ok bool) {
	ordered := Sorted(source)
	idx := indexOf(ordered, id)
	if idx < 0 {
		return Reindex(ordered), Reindex(Sorted(dest)), false
	}
	moved := ordered[idx]
	newSource = Reindex(append(append([]Ref(nil), ordered[:idx]...), ordered[idx+1:]...))

	destOrdered := Sorted(dest)
	destIndex = clamp(destIndex, 0, len(destOrdered))
	out := make([]Ref, 0, len(destOrdered)+1)
	out = append(out, destOrdered[:destIndex]...)
	out = append(out, moved)
	out = append(out, destOrdered[destIndex:]...)
	return newSource, Reindex(out), true
}

// Concat joins section slices into one global position assignment. The
// quick-access folder list stores the owned section before the subscribed
// section; reordering one section must still persist positions for both, or
// the untouched section drifts out of sync.
func Concat(sections ...[]Ref) []Ref {
	total := 0
	for _, section := range sections {
		total += len(section)
	}
	out := make([]Ref, 0, total)
	for _, section := range sections {
		out = append(out, section...)
	}
	return Reindex(out)
}

// Changed returns the refs whose position differs between before and after,
// in after's index order. Persisting only the changed subset keeps remote
// position writes minimal while preserving write order.
func Changed(before, after []Ref) []Ref {
	prev := make(map[string]int, len(before))
	for _, ref := range before {
		prev[ref.ID] = ref.Position
	}
	changed := make([]Ref, 0, len(after))
	for _, ref := range after {
		old, ok := prev[ref.ID]
		if !ok || old != ref.Position {
			changed = append(changed, ref)
		}
	}
	return changed
}

func indexOf(list []Ref, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
