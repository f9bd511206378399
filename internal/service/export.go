package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/repo"
)

const dateLayout = "2006-01-02"

// ExportService assembles flat itinerary exports.
type ExportService struct {
	trips repo.TripRepo
	boxes repo.PlanBoxRepo
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(trips repo.TripRepo, boxes repo.PlanBoxRepo) *ExportService {
	return &ExportService{trips: trips, boxes: boxes}
}

// Export returns the rows of every trip owned by actor, trips in list order.
func (s *ExportService) Export(ctx context.Context, actor uuid.UUID) ([]domain.ExportRow, error) {
	trips, err := s.trips.List(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: list trips: %w", err)
	}
	rows := []domain.ExportRow{}
	for _, trip := range trips {
		tripRows, err := s.ExportTrip(ctx, trip)
		if err != nil {
			return nil, err
		}
		rows = append(rows, tripRows...)
	}
	return rows, nil
}

// ExportTrip returns one row per plan box of trip in itinerary order: by
// day, timed boxes by start time, then untimed boxes by title. A trip with
// no boxes yields one row carrying only the trip fields.
func (s *ExportService) ExportTrip(ctx context.Context, trip domain.Trip) ([]domain.ExportRow, error) {
	boxes, err := s.boxes.ListAll(ctx, trip.ID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list plan boxes", Err: err}
	}

	base := domain.ExportRow{
		TripID:        trip.ID.String(),
		TripTitle:     trip.Title,
		Destination:   trip.Destination,
		TripStartDate: trip.StartDate.Format(dateLayout),
		TripEndDate:   trip.EndDate.Format(dateLayout),
	}
	if len(boxes) == 0 {
		return []domain.ExportRow{base}, nil
	}

	slices.SortStableFunc(boxes, itineraryOrder)
	rows := make([]domain.ExportRow, 0, len(boxes))
	for _, b := range boxes {
		row := base
		row.Day = b.Day
		row.Date = trip.DateOf(b.Day).Format(dateLayout)
		if b.HasTimeSet {
			row.Start = b.Start.String()
			row.End = exportEnd(b.EndMinutes())
		}
		row.Category = string(b.Category)
		row.Title = b.Title
		row.Location = b.Location
		row.Memo = b.Memo
		row.Cost = b.Cost
		row.Currency = b.Currency
		rows = append(rows, row)
	}
	return rows, nil
}

// exportEnd formats an end time in minutes since the box's midnight. An end
// on a later day wraps to that day's clock and gains a "+N" day marker.
func exportEnd(m int) string {
	const day = 24 * 60
	end := domain.TimeFromMinutes(m % day).String()
	if n := m / day; n > 0 {
		return fmt.Sprintf("%s+%d", end, n)
	}
	return end
}

func itineraryOrder(a, b domain.PlanBox) int {
	if c := cmp.Compare(a.Day, b.Day); c != 0 {
		return c
	}
	if a.HasTimeSet != b.HasTimeSet {
		if a.HasTimeSet {
			return -1
		}
		return 1
	}
	if a.HasTimeSet {
		if c := cmp.Compare(a.StartMinutes(), b.StartMinutes()); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.Title, b.Title)
}
