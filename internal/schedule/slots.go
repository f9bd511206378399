package schedule

import (
	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
)

// Slots derives the time-slot grid of one trip day.
//
// Cells span the trip's display window at snap-minute granularity. A cell is
// occupied when any timed box on that day overlaps the cell's own half-open
// interval; when several do, the chronologically first box is reported.
// A day outside the trip yields an empty, non-nil slice.
func Slots(trip domain.Trip, boxes []domain.PlanBox, day, snap int) []domain.TimeSlot {
	if !trip.HasDay(day) {
		return []domain.TimeSlot{}
	}
	if snap <= 0 {
		snap = DefaultSnapMinutes
	}

	w := WindowOf(trip.Settings)
	onDay := scheduledOn(boxes, day, uuid.Nil)
	slots := make([]domain.TimeSlot, 0, (w.End-w.Start+snap-1)/snap)

	for m := w.Start; m < w.End; m += snap {
		cell := Interval{Start: m, End: m + snap}
		slot := domain.TimeSlot{Day: day, Hour: m / 60, Minute: m % 60}
		for _, b := range onDay {
			if Overlaps(cell, IntervalOf(b)) {
				slot.Occupied = true
				slot.PlanBoxID = b.ID
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// SlotAt returns the start of the cell containing minute m, snapped down to
// the grid, and whether that cell lies inside the window.
func SlotAt(w Window, snap, m int) (domain.TimeOfDay, bool) {
	if snap <= 0 {
		snap = DefaultSnapMinutes
	}
	if m < w.Start || m >= w.End {
		return domain.TimeOfDay{}, false
	}
	snapped := w.Start + ((m-w.Start)/snap)*snap
	return domain.TimeFromMinutes(snapped), true
}
