package domain

import "github.com/google/uuid"

// TimeSlot is one addressable grid cell of a trip day. It is derived from the
// plan boxes on demand and never persisted.
type TimeSlot struct {
	Day       int       `json:"day"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Occupied  bool      `json:"occupied"`
	PlanBoxID uuid.UUID `json:"plan_box_id,omitzero"`
}

// Start returns the cell start as a TimeOfDay.
func (s TimeSlot) Start() TimeOfDay {
	return TimeOfDay{Hour: s.Hour, Minute: s.Minute}
}

// Placement is a proposed time window for a plan box.
// ExcludeID names the box being moved so it is not compared with itself.
type Placement struct {
	Day             int
	Start           TimeOfDay
	DurationMinutes int
	ExcludeID       uuid.UUID
}

// PlacementOf returns the placement currently occupied by b, excluding b itself.
func PlacementOf(b PlanBox) Placement {
	return Placement{Day: b.Day, Start: b.Start, DurationMinutes: b.DurationMinutes, ExcludeID: b.ID}
}

// ConflictResult is the outcome of checking a placement against the boxes
// already scheduled on the same day.
// SuggestedStart is nil when there is no conflict or no gap fits.
type ConflictResult struct {
	Conflict       bool       `json:"conflict"`
	Conflicting    []PlanBox  `json:"conflicting"`
	SuggestedStart *TimeOfDay `json:"suggested_start"`
}
