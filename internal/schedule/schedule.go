// Package schedule is the scheduling core of the planner: the derived
// time-slot grid, half-open interval conflict detection, and the suggested
// alternative start time. Every function is a pure, deterministic computation
// over its arguments; nothing here performs I/O or keeps state.
package schedule

import (
	"cmp"
	"slices"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
)

// DefaultSnapMinutes is the grid granularity used when callers pass zero.
const DefaultSnapMinutes = 15

// Interval is a half-open range [Start, End) in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether a and b intersect. Intervals that only touch
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// IntervalOf returns the time window a plan box occupies.
func IntervalOf(b domain.PlanBox) Interval {
	return Interval{Start: b.StartMinutes(), End: b.EndMinutes()}
}

// PlacementInterval returns the time window a placement would occupy.
func PlacementInterval(p domain.Placement) Interval {
	start := p.Start.Minutes()
	return Interval{Start: start, End: start + p.DurationMinutes}
}

// Window is the configured display range of a trip day, in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// WindowOf derives the display window from trip settings, applying the
// default window when none is configured.
func WindowOf(s domain.TripSettings) Window {
	s = s.WithDefaults("")
	return Window{Start: s.DisplayStartHour * 60, End: s.DisplayEndHour * 60}
}

// Contains reports whether iv lies entirely inside the window.
func (w Window) Contains(iv Interval) bool {
	return iv.Start >= w.Start && iv.End <= w.End
}

// scheduledOn returns the timed boxes on day, excluding exclude, ordered
// chronologically. Ties break on end time and then ID so the order never
// depends on the input order.
func scheduledOn(boxes []domain.PlanBox, day int, exclude uuid.UUID) []domain.PlanBox {
	out := make([]domain.PlanBox, 0, len(boxes))
	for _, b := range boxes {
		if !b.Scheduled(day) {
			continue
		}
		if exclude != uuid.Nil && b.ID == exclude {
			continue
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b domain.PlanBox) int {
		return cmp.Or(
			cmp.Compare(a.StartMinutes(), b.StartMinutes()),
			cmp.Compare(a.EndMinutes(), b.EndMinutes()),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return out
}
