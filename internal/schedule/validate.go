package schedule

import (
	"fmt"
	"strings"

	"github.com/tabiplan/planner/internal/domain"
)

// Validate enforces the plan box rules that must hold before any conflict
// check runs. Every failure wraps domain.ErrValidation.
//   - Title must be non-empty (whitespace-only titles are rejected).
//   - Category must be one of the closed set.
//   - DurationMinutes must be positive.
//   - Day must fall inside the trip.
//   - A timed box must start at a valid time inside the display window and,
//     unless AllowOverflow is set, end before the window closes.
//   - Cost, when present, must not be negative; Currency must be a 3-letter code.
func Validate(box domain.PlanBox, trip domain.Trip) error {
	if strings.TrimSpace(box.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if !box.Category.Valid() {
		return fmt.Errorf("%w: category %q is not one of %v", domain.ErrValidation, box.Category, domain.Categories)
	}
	if box.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive", domain.ErrValidation)
	}
	if !trip.HasDay(box.Day) {
		return fmt.Errorf("%w: day %d is outside the trip (0-%d)", domain.ErrValidation, box.Day, trip.DayCount()-1)
	}
	if box.HasTimeSet {
		if err := validateTime(box, WindowOf(trip.Settings)); err != nil {
			return err
		}
	}
	if box.Cost != nil && *box.Cost < 0 {
		return fmt.Errorf("%w: cost must not be negative", domain.ErrValidation)
	}
	if box.Currency != "" && !isCurrencyCode(box.Currency) {
		return fmt.Errorf("%w: currency %q must be a 3-letter ISO code", domain.ErrValidation, box.Currency)
	}
	return nil
}

// ValidatePlacement applies the time rules of Validate to a bare placement,
// as used by conflict checks that do not carry a full plan box.
func ValidatePlacement(p domain.Placement, trip domain.Trip) error {
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive", domain.ErrValidation)
	}
	if !trip.HasDay(p.Day) {
		return fmt.Errorf("%w: day %d is outside the trip (0-%d)", domain.ErrValidation, p.Day, trip.DayCount()-1)
	}
	if !p.Start.Valid() {
		return fmt.Errorf("%w: start must be between 00:00 and 23:59", domain.ErrValidation)
	}
	return nil
}

func validateTime(box domain.PlanBox, w Window) error {
	if !box.Start.Valid() {
		return fmt.Errorf("%w: start must be between 00:00 and 23:59", domain.ErrValidation)
	}
	iv := IntervalOf(box)
	if iv.Start < w.Start {
		return fmt.Errorf("%w: start %s is before the display window opens at %s",
			domain.ErrValidation, box.Start, domain.TimeFromMinutes(w.Start))
	}
	if iv.Start >= w.End {
		return fmt.Errorf("%w: start %s is after the display window closes at %s",
			domain.ErrValidation, box.Start, domain.TimeFromMinutes(w.End))
	}
	if iv.End > w.End && !box.AllowOverflow {
		return fmt.Errorf("%w: plan box ends after the display window; set allow_overflow to keep it",
			domain.ErrValidation)
	}
	return nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
