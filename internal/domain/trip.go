// Package domain contains the core data types for the trip planner.
// It depends only on the standard library and google/uuid and is imported by
// every other internal package (schedule, planner, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may view a trip.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// Default display window, in whole hours, for trips that do not configure one.
const (
	DefaultDisplayStartHour = 6
	DefaultDisplayEndHour   = 24
)

// TripSettings holds the optional per-trip presentation settings.
// Zero values are replaced by WithDefaults before validation.
type TripSettings struct {
	DisplayStartHour int        `json:"display_start_hour"`
	DisplayEndHour   int        `json:"display_end_hour"`
	Currency         string     `json:"currency,omitempty"`
	Timezone         string     `json:"timezone,omitempty"`
	Visibility       Visibility `json:"visibility,omitempty"`
}

// WithDefaults returns a copy of s with unset fields filled in.
// currency is the application-wide fallback currency code.
func (s TripSettings) WithDefaults(currency string) TripSettings {
	if s.DisplayStartHour == 0 && s.DisplayEndHour == 0 {
		s.DisplayStartHour = DefaultDisplayStartHour
		s.DisplayEndHour = DefaultDisplayEndHour
	}
	if s.Currency == "" {
		s.Currency = currency
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.Visibility == "" {
		s.Visibility = VisibilityPrivate
	}
	return s
}

// Trip is the aggregate root: a date range at a destination plus the plan
// boxes scheduled inside it. PlanBoxes is only populated when a caller loads
// them explicitly; the trips table does not carry them.
type Trip struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	StartDate   time.Time
	EndDate     time.Time
	Destination string
	Domestic    bool
	Settings    TripSettings
	PlanBoxes   []PlanBox
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DayCount returns the number of day columns the trip spans, counting both
// the start and end dates. It returns 0 when EndDate is before StartDate.
func (t Trip) DayCount() int {
	start := dateOnly(t.StartDate)
	end := dateOnly(t.EndDate)
	if end.Before(start) {
		return 0
	}
	// Hours/24 rather than AddDate loops: both values are UTC midnights.
	return int(end.Sub(start).Hours()/24) + 1
}

// HasDay reports whether day is a valid 0-based day index for the trip.
func (t Trip) HasDay(day int) bool {
	return day >= 0 && day < t.DayCount()
}

// DateOf returns the calendar date of the given day index.
func (t Trip) DateOf(day int) time.Time {
	return dateOnly(t.StartDate).AddDate(0, 0, day)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// VisibleTo reports whether actor may read the trip: owners always can,
// everyone else only when the trip is not private.
func (t Trip) VisibleTo(actor uuid.UUID) bool {
	if t.OwnerID == actor {
		return true
	}
	v := t.Settings.Visibility
	return v == VisibilityShared || v == VisibilityPublic
}
