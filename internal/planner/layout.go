package planner

import (
	"fmt"
	"math"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/schedule"
)

// Point is a pointer position in canvas pixels.
type Point struct {
	X float64
	Y float64
}

// Target is the grid cell under the pointer.
type Target struct {
	Day   int
	Start domain.TimeOfDay
}

// Key identifies the cell, e.g. "2-09:30".
func (t Target) Key() string {
	return fmt.Sprintf("%d-%s", t.Day, t.Start)
}

// Layout maps canvas coordinates onto the day-by-slot grid: one column per
// trip day, one row per snap interval starting at the display window.
type Layout struct {
	Origin      Point
	ColumnWidth float64
	RowHeight   float64
	SnapMinutes int
	Days        int
	Window      schedule.Window
}

// DefaultLayout returns the grid geometry the web client draws by default
// for trip: 160px day columns and 24px rows.
func DefaultLayout(trip domain.Trip, snap int) Layout {
	if snap <= 0 {
		snap = schedule.DefaultSnapMinutes
	}
	return Layout{
		ColumnWidth: 160,
		RowHeight:   24,
		SnapMinutes: snap,
		Days:        trip.DayCount(),
		Window:      schedule.WindowOf(trip.Settings),
	}
}

// CellAt returns the cell containing p, or false when p lies outside the grid.
func (l Layout) CellAt(p Point) (Target, bool) {
	if l.ColumnWidth <= 0 || l.RowHeight <= 0 || l.SnapMinutes <= 0 {
		return Target{}, false
	}
	col := math.Floor((p.X - l.Origin.X) / l.ColumnWidth)
	row := math.Floor((p.Y - l.Origin.Y) / l.RowHeight)
	// NaN fails every comparison, so test for the in-range case.
	if !(col >= 0 && col < float64(l.Days)) {
		return Target{}, false
	}
	if !(row >= 0 && row*float64(l.SnapMinutes) < float64(l.Window.End-l.Window.Start)) {
		return Target{}, false
	}
	start, ok := schedule.SlotAt(l.Window, l.SnapMinutes, l.Window.Start+int(row)*l.SnapMinutes)
	if !ok {
		return Target{}, false
	}
	return Target{Day: int(col), Start: start}, true
}
