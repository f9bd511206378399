package domain

import (
	"time"

	"github.com/google/uuid"
)

// CanvasPosition is the free-form position of a plan box on the planner
// canvas, used before a time has been assigned.
type CanvasPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlanBox is a single schedulable itinerary item.
// Start and DurationMinutes only take part in scheduling when HasTimeSet is true.
// Cost is expressed in minor units of Currency (e.g. 999 = $9.99).
type PlanBox struct {
	ID              uuid.UUID       `json:"id"`
	TripID          uuid.UUID       `json:"trip_id"`
	Day             int             `json:"day"`
	HasTimeSet      bool            `json:"has_time_set"`
	Start           TimeOfDay       `json:"start"`
	DurationMinutes int             `json:"duration_minutes"`
	Category        Category        `json:"category"`
	Title           string          `json:"title"`
	Memo            string          `json:"memo,omitempty"`
	Location        string          `json:"location,omitempty"`
	Cost            *int64          `json:"cost,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	Position        *CanvasPosition `json:"position,omitempty"`
	AllowOverflow   bool            `json:"allow_overflow"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StartMinutes returns the box start in minutes since midnight.
func (b PlanBox) StartMinutes() int {
	return b.Start.Minutes()
}

// EndMinutes returns the exclusive end of the box in minutes since midnight.
func (b PlanBox) EndMinutes() int {
	return b.Start.Minutes() + b.DurationMinutes
}

// Scheduled reports whether the box occupies time on the given day.
func (b PlanBox) Scheduled(day int) bool {
	return b.HasTimeSet && b.Day == day
}
