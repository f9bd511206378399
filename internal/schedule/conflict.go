package schedule

import "github.com/tabiplan/planner/internal/domain"

// Detect checks a candidate placement against the existing plan boxes.
//
// Only timed boxes on the candidate's day take part, and the box named by
// ExcludeID is ignored so a box never conflicts with its own old position.
// Every overlapping box is returned in chronological order. When there is a
// conflict, SuggestedStart is the earliest start at or after the candidate's
// start where the full duration fits between existing boxes and before the
// window ends; it stays nil when no such gap exists.
func Detect(candidate domain.Placement, existing []domain.PlanBox, w Window) domain.ConflictResult {
	cand := PlacementInterval(candidate)
	onDay := scheduledOn(existing, candidate.Day, candidate.ExcludeID)

	result := domain.ConflictResult{Conflicting: []domain.PlanBox{}}
	for _, b := range onDay {
		if Overlaps(cand, IntervalOf(b)) {
			result.Conflicting = append(result.Conflicting, b)
		}
	}
	if len(result.Conflicting) == 0 {
		return result
	}

	result.Conflict = true
	result.SuggestedStart = suggestStart(cand, onDay, w)
	return result
}

// suggestStart scans the gaps between chronologically ordered boxes, starting
// at the candidate's own start, for the first one long enough to hold it.
func suggestStart(cand Interval, onDay []domain.PlanBox, w Window) *domain.TimeOfDay {
	duration := cand.End - cand.Start
	at := cand.Start
	for _, b := range onDay {
		iv := IntervalOf(b)
		if iv.End <= at {
			continue
		}
		if iv.Start >= at+duration {
			break
		}
		at = iv.End
	}
	if at+duration > w.End || at+duration > domain.MinutesPerDay {
		return nil
	}
	tod := domain.TimeFromMinutes(at)
	return &tod
}
