package timeline

import (
	"testing"

	"github.com/avdeck/cueroom/internal/domain"
)

func cue(id string, time float64, sortOrder int) domain.Cue {
	return domain.Cue{ID: id, Time: time, SortOrder: sortOrder}
}

func TestOrderCuesSortsByTime(t *testing.T) {
	cues := []domain.Cue{
		cue("c", 30, 0),
		cue("a", 5, 1),
		cue("b", 12.5, 2),
	}

	got := OrderCues(cues)

	wantIDs := []string{"a", "b", "c"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID, id)
		}
		if got[i].Number != i+1 {
			t.Fatalf("number for %q = %d, want %d", got[i].ID, got[i].Number, i+1)
		}
	}
}

func TestOrderCuesBreaksTiesBySortOrder(t *testing.T) {
	cues := []domain.Cue{
		cue("second", 10, 4),
		cue("first", 10, 1),
		cue("third", 10, 9),
	}

	got := OrderCues(cues)

	wantIDs := []string{"first", "second", "third"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestOrderCuesNumbersAreContiguous(t *testing.T) {
	cues := []domain.Cue{
		cue("a", 3, 2), cue("b", 3, 0), cue("c", 1, 1),
		cue("d", 99, 3), cue("e", 0, 4),
	}

	got := OrderCues(cues)

	seen := make(map[int]bool)
	for _, c := range got {
		if c.Number < 1 || c.Number > len(got) {
			t.Fatalf("number %d out of range 1..%d", c.Number, len(got))
		}
		if seen[c.Number] {
			t.Fatalf("number %d assigned twice", c.Number)
		}
		seen[c.Number] = true
	}
}

func TestOrderCuesIsIdempotent(t *testing.T) {
	cues := []domain.Cue{cue("a", 7, 1), cue("b", 2, 0), cue("c", 7, 0)}

	once := OrderCues(cues)
	twice := OrderCues(once)

	for i := range once {
		if once[i].ID != twice[i].ID || once[i].Number != twice[i].Number {
			t.Fatalf("position %d changed on reorder: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestOrderCuesDoesNotMutateInput(t *testing.T) {
	cues := []domain.Cue{cue("b", 9, 0), cue("a", 1, 1)}

	_ = OrderCues(cues)

	if cues[0].ID != "b" || cues[0].Number != 0 {
		t.Fatalf("input mutated: %+v", cues[0])
	}
}

func TestOrderTracks(t *testing.T) {
	tracks := []domain.Track{
		{ID: "t2", SortOrder: 2},
		{ID: "t0", SortOrder: 0},
		{ID: "t1", SortOrder: 1},
	}

	got := OrderTracks(tracks)

	for i, id := range []string{"t0", "t1", "t2"} {
		if got[i].ID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestNextCueOrder(t *testing.T) {
	cases := []struct {
		name string
		cues []domain.Cue
		want int
	}{
		{name: "empty", cues: nil, want: 0},
		{name: "single", cues: []domain.Cue{cue("a", 0, 0)}, want: 1},
		{name: "gap", cues: []domain.Cue{cue("a", 0, 0), cue("b", 0, 7)}, want: 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextCueOrder(tc.cues); got != tc.want {
				t.Fatalf("NextCueOrder = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNextTrackOrder(t *testing.T) {
	if got := NextTrackOrder(nil); got != 0 {
		t.Fatalf("NextTrackOrder(nil) = %d, want 0", got)
	}
	tracks := []domain.Track{{SortOrder: 3}, {SortOrder: 1}}
	if got := NextTrackOrder(tracks); got != 4 {
		t.Fatalf("NextTrackOrder = %d, want 4", got)
	}
}

func TestAssignImportOrdersPreservesInputOrder(t *testing.T) {
	existing := []domain.Cue{cue("old", 0, 4)}
	batch := []domain.Cue{cue("i1", 20, 0), cue("i2", 10, 0), cue("i3", 30, 0)}

	got := AssignImportOrders(existing, batch)

	for i, wantOrder := range []int{5, 6, 7} {
		if got[i].SortOrder != wantOrder {
			t.Fatalf("batch[%d].SortOrder = %d, want %d", i, got[i].SortOrder, wantOrder)
		}
	}
	if got[0].ID != "i1" || got[2].ID != "i3" {
		t.Fatalf("input order not preserved: %+v", got)
	}
}
