package ordering

import (
	"testing"
)

func refs(ids ...string) []Ref {
	out := make([]Ref, 0, len(ids))
	for i, id := range ids {
		out = append(out, Ref{ID: id, Position: i})
	}
	return out
}

func assertContiguous(t *testing.T, list []Ref) {
	t.Helper()
	seen := map[int]string{}
	for _, ref := range list {
		if prev, dup := seen[ref.Position]; dup {
			t.Fatalf("duplicate position %d held by %s and %s", ref.Position, prev, ref.ID)
		}
		seen[ref.Position] = ref.ID
	}
	for i := 0; i < len(list); i++ {
		if _, ok := seen[i]; !ok {
			t.Fatalf("position %d missing from %v", i, list)
		}
	}
}

func assertOrder(t *testing.T, list []Ref, want ...string) {
	t.Helper()
	ordered := Sorted(list)
	if len(ordered) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(ordered))
	}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("expected %s at index %d, got %s", id, i, ordered[i].ID)
		}
		if ordered[i].Position != i {
			t.Fatalf("expected position %d for %s, got %d", i, id, ordered[i].Position)
		}
	}
}

func TestNextPosition(t *testing.T) {
	if got := NextPosition(nil); got != 0 {
		t.Fatalf("expected 0 for empty scope, got %d", got)
	}
	if got := NextPosition(refs("a", "b", "c")); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	gapped := []Ref{{ID: "a", Position: 2}, {ID: "b", Position: 7}}
	if got := NextPosition(gapped); got != 8 {
		t.Fatalf("expected 8 for gapped input, got %d", got)
	}
}

func TestReorderMovesAndReindexes(t *testing.T) {
	out, ok := Reorder(refs("a", "b", "c", "d"), "d", 1)
	if !ok {
		t.Fatalf("expected moved id to be found")
	}
	assertContiguous(t, out)
	assertOrder(t, out, "a", "d", "b", "c")
}

func TestReorderToOwnIndexIsIdempotent(t *testing.T) {
	in := refs("a", "b", "c")
	out, ok := Reorder(in, "b", 1)
	if !ok {
		t.Fatalf("expected moved id to be found")
	}
	assertOrder(t, out, "a", "b", "c")
}

func TestReorderRepairsNonContiguousInput(t *testing.T) {
	in := []Ref{{ID: "a", Position: 3}, {ID: "b", Position: 9}, {ID: "c", Position: 9}}
	out, ok := Reorder(in, "a", 2)
	if !ok {
		t.Fatalf("expected moved id to be found")
	}
	assertContiguous(t, out)
	assertOrder(t, out, "b", "c", "a")
}

func TestReorderUnknownIDStillCompacts(t *testing.T) {
	in := []Ref{{ID: "a", Position: 5}, {ID: "b", Position: 8}}
	out, ok := Reorder(in, "missing", 0)
	if ok {
		t.Fatalf("expected unknown id to be reported")
	}
	assertContiguous(t, out)
	assertOrder(t, out, "a", "b")
}

func TestReorderSingleElement(t *testing.T) {
	out, ok := Reorder(refs("only"), "only", 0)
	if !ok {
		t.Fatalf("expected moved id to be found")
	}
	assertOrder(t, out, "only")
}

func TestReorderClampsIndex(t *testing.T) {
	out, _ := Reorder(refs("a", "b", "c"), "a", 99)
	assertOrder(t, out, "b", "c", "a")
	out, _ = Reorder(refs("a", "b", "c"), "c", -4)
	assertOrder(t, out, "c", "a", "b")
}

func TestRemoveCompacts(t *testing.T) {
	out, ok := Remove(refs("a", "b", "c"), "b")
	if !ok {
		t.Fatalf("expected removed id to be found")
	}
	assertContiguous(t, out)
	assertOrder(t, out, "a", "c")
}

func TestMoveAcrossScopes(t *testing.T) {
	src, dst, ok := MoveAcross(refs("a", "b", "c"), refs("x", "y"), "b", 1)
	if !ok {
		t.Fatalf("expected moved id to be found")
	}
	assertContiguous(t, src)
	assertContiguous(t, dst)
	assertOrder(t, src, "a", "c")
	assertOrder(t, dst, "x", "b", "y")
}

func TestMoveAcrossUnknownID(t *testing.T) {
	src, dst, ok := MoveAcross(refs("a"), refs("x"), "nope", 0)
	if ok {
		t.Fatalf("expected unknown id to be reported")
	}
	assertOrder(t, src, "a")
	assertOrder(t, dst, "x")
}

func TestConcatAssignsGlobalPositions(t *testing.T) {
	owned := refs("o1", "o2")
	subscribed := refs("s1", "s2", "s3")
	out := Concat(owned, subscribed)
	assertContiguous(t, out)
	assertOrder(t, out, "o1", "o2", "s1", "s2", "s3")
}

func TestChangedReportsOnlyMovedRefs(t *testing.T) {
	before := refs("a", "b", "c", "d")
	after, _ := Reorder(before, "d", 0)
	changed := Changed(before, after)
	if len(changed) != 4 {
		t.Fatalf("expected every element shifted, got %d", len(changed))
	}
	same := Changed(before, before)
	if len(same) != 0 {
		t.Fatalf("expected no changes, got %v", same)
	}
}

func TestRandomisedOperationsKeepContiguity(t *testing.T) {
	list := refs("a", "b", "c", "d", "e")
	moves := []struct {
		id    string
		index int
	}{
		{"e", 0}, {"a", 4}, {"c", 2}, {"b", 3}, {"d", 0}, {"a", 1},
	}
	for _, m := range moves {
		var ok bool
		list, ok = Reorder(list, m.id, m.index)
		if !ok {
			t.Fatalf("expected %s to be present", m.id)
		}
		assertContiguous(t, list)
	}
	list, _ = Remove(list, "c")
	assertContiguous(t, list)
	list = append(list, Ref{ID: "f", Position: NextPosition(list)})
	assertContiguous(t, list)
}
