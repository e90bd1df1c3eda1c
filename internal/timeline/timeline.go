// Package timeline holds the pure ordering rules for cues and tracks.
// Nothing here touches storage or transport.
package timeline

import (
	"sort"

	"github.com/avdeck/cueroom/internal/domain"
)

// OrderCues returns a new slice sorted by ascending time, ties broken
// by ascending sort_order. The comparison is total: two distinct cues
// in the same track never compare equal because sort_order values are
// unique within the track. Derived Number fields are assigned 1..N.
func OrderCues(cues []domain.Cue) []domain.Cue {
	ordered := make([]domain.Cue, len(cues))
	copy(ordered, cues)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Time != ordered[j].Time {
			return ordered[i].Time < ordered[j].Time
		}
		return ordered[i].SortOrder < ordered[j].SortOrder
	})
	for i := range ordered {
		ordered[i].Number = i + 1
	}
	return ordered
}

// OrderTracks returns a new slice sorted by ascending sort_order.
func OrderTracks(tracks []domain.Track) []domain.Track {
	ordered := make([]domain.Track, len(tracks))
	copy(ordered, tracks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})
	return ordered
}

// NextCueOrder returns max(sort_order)+1 over the track's cues, or zero
// when there are none. Callers append with the returned value; the
// dispatcher's per-project serialization makes the read-then-insert
// pattern safe.
func NextCueOrder(cues []domain.Cue) int {
	next := 0
	for _, c := range cues {
		if c.SortOrder >= next {
			next = c.SortOrder + 1
		}
	}
	return next
}

// NextTrackOrder is NextCueOrder for track display order.
func NextTrackOrder(tracks []domain.Track) int {
	next := 0
	for _, t := range tracks {
		if t.SortOrder >= next {
			next = t.SortOrder + 1
		}
	}
	return next
}

// AssignImportOrders gives a batch of new cues strictly increasing
// sort_order values starting at the track's next free slot, preserving
// input order.
func AssignImportOrders(existing []domain.Cue, batch []domain.Cue) []domain.Cue {
	next := NextCueOrder(existing)
	out := make([]domain.Cue, len(batch))
	copy(out, batch)
	for i := range out {
		out[i].SortOrder = next + i
	}
	return out
}
