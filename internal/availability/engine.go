// Package availability computes free windows for a resource from a snapshot
// of its active holds and confirmed reservations. Everything here is pure:
// the engine never touches the store and is deterministic for a given
// snapshot, which lets it run lock-free on any number of replicas.
package availability

import (
	"iter"
	"slices"
	"time"

	"github.com/aikokik/bookabl-api/internal/domain"
)

// boundary is a sweep-line event: +1 at an occupied start, -1 at an end.
type boundary struct {
	at    time.Time
	delta int
}

// boundaries clips the occupied intervals to window and returns the sorted
// sweep-line events. Ends sort before starts at equal instants so that
// back-to-back bookings on a capacity-1 resource do not read as a double
// occupancy at the touching instant.
func boundaries(occupied []domain.Interval, window domain.Interval) []boundary {
	events := make([]boundary, 0, 2*len(occupied))
	for _, iv := range occupied {
		clipped, ok := iv.Intersect(window)
		if !ok {
			continue
		}
		events = append(events, boundary{at: clipped.Start, delta: +1}, boundary{at: clipped.End, delta: -1})
	}
	slices.SortFunc(events, func(a, b boundary) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return a.delta - b.delta
	})
	return events
}

// PeakOccupancy returns the maximum number of intervals simultaneously
// covering any instant of window. The store's capacity check is built on
// this: a new claim is admissible iff the peak including it stays within
// the resource capacity.
func PeakOccupancy(occupied []domain.Interval, window domain.Interval) int {
	peak, running := 0, 0
	for _, ev := range boundaries(occupied, window) {
		running += ev.delta
		if running > peak {
			peak = running
		}
	}
	return peak
}

// FreeWindows yields the sub-intervals of query where fewer than capacity of
// the occupied intervals overlap, in ascending order with adjacent free spans
// merged. The sequence is lazy and restartable: ranging over it again replays
// the same windows for the same snapshot.
//
// For capacity 1 this is the complement of the merged occupied set; for
// capacity C it is everywhere the sweep-line count stays below C.
func FreeWindows(occupied []domain.Interval, query domain.Interval, capacity int) iter.Seq[domain.Interval] {
	if capacity <= 0 {
		capacity = 1
	}
	return func(yield func(domain.Interval) bool) {
		events := boundaries(occupied, query)

		running := 0
		freeFrom := query.Start
		for _, ev := range events {
			wasFull := running >= capacity
			running += ev.delta
			isFull := running >= capacity

			switch {
			case !wasFull && isFull:
				// Free span closes here.
				if ev.at.After(freeFrom) {
					if !yield(domain.Interval{Start: freeFrom, End: ev.at}) {
						return
					}
				}
			case wasFull && !isFull:
				// Free span reopens here.
				freeFrom = ev.at
			}
		}
		if running < capacity && query.End.After(freeFrom) {
			yield(domain.Interval{Start: freeFrom, End: query.End})
		}
	}
}

// CollectFreeWindows materializes FreeWindows into a slice, for callers that
// need the whole answer at once (HTTP responses, tests).
func CollectFreeWindows(occupied []domain.Interval, query domain.Interval, capacity int) []domain.Interval {
	var out []domain.Interval
	for w := range FreeWindows(occupied, query, capacity) {
		out = append(out, w)
	}
	return out
}
