package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/repo"
	"github.com/tabiplan/planner/internal/schedule"
)

// SaveOptions tune PlanBoxService.Save.
type SaveOptions struct {
	// Force stores the box even when it overlaps others on the same day.
	Force bool
}

// PlanBoxService implements the server-side plan box operations: the same
// validate, detect, write sequence the planner board runs, for clients that
// talk to the API directly.
type PlanBoxService struct {
	boxes  repo.PlanBoxRepo
	events Publisher
	snap   int
	logger *slog.Logger
}

// NewPlanBoxService constructs a PlanBoxService. snapMinutes sets the slot
// grid granularity; pub and logger may be nil.
func NewPlanBoxService(boxes repo.PlanBoxRepo, pub Publisher, snapMinutes int, logger *slog.Logger) *PlanBoxService {
	if pub == nil {
		pub = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanBoxService{boxes: boxes, events: pub, snap: snapMinutes, logger: logger}
}

// List returns every plan box of trip, newest first.
func (s *PlanBoxService) List(ctx context.Context, trip domain.Trip) ([]domain.PlanBox, error) {
	boxes, err := s.boxes.ListAll(ctx, trip.ID)
	if err != nil {
		return nil, s.persistence("list plan boxes", err)
	}
	return boxes, nil
}

// Get returns one plan box of trip.
func (s *PlanBoxService) Get(ctx context.Context, trip domain.Trip, id uuid.UUID) (domain.PlanBox, error) {
	box, err := s.boxes.Get(ctx, trip.ID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PlanBox{}, fmt.Errorf("service.PlanBoxService.Get: %w", err)
		}
		return domain.PlanBox{}, s.persistence("get plan box", err)
	}
	return box, nil
}

// Save validates box, checks it against the trip's other boxes and upserts it.
//
// Validation failures wrap domain.ErrValidation and are reported before any
// conflict check. An overlap returns a *domain.ConflictError carrying the
// result unless opts.Force is set. Store failures return a
// *domain.PersistenceError.
func (s *PlanBoxService) Save(ctx context.Context, trip domain.Trip, box domain.PlanBox, opts SaveOptions) (domain.PlanBox, error) {
	box.TripID = trip.ID
	box.Title = strings.TrimSpace(box.Title)
	if box.ID == uuid.Nil {
		box.ID = uuid.New()
	}
	if box.Currency == "" && box.Cost != nil {
		box.Currency = trip.Settings.WithDefaults("").Currency
	}
	if err := schedule.Validate(box, trip); err != nil {
		return domain.PlanBox{}, err
	}

	if box.HasTimeSet && !opts.Force {
		existing, err := s.boxes.ListAll(ctx, trip.ID)
		if err != nil {
			return domain.PlanBox{}, s.persistence("list plan boxes", err)
		}
		res := schedule.Detect(domain.PlacementOf(box), existing, schedule.WindowOf(trip.Settings))
		if res.Conflict {
			return domain.PlanBox{}, &domain.ConflictError{Result: res}
		}
	}

	stored, err := s.boxes.Upsert(ctx, box)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PlanBox{}, fmt.Errorf("service.PlanBoxService.Save: %w", err)
		}
		return domain.PlanBox{}, s.persistence("upsert plan box", err)
	}
	s.events.Publish(events.Event{Type: events.TypePlanBoxSaved, OwnerID: trip.OwnerID, TripID: trip.ID, Data: stored})
	return stored, nil
}

// Delete removes a plan box from trip.
func (s *PlanBoxService) Delete(ctx context.Context, trip domain.Trip, id uuid.UUID) error {
	if err := s.boxes.Delete(ctx, trip.ID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("service.PlanBoxService.Delete: %w", err)
		}
		return s.persistence("delete plan box", err)
	}
	s.events.Publish(events.Event{
		Type:    events.TypePlanBoxDeleted,
		OwnerID: trip.OwnerID,
		TripID:  trip.ID,
		Data:    map[string]string{"id": id.String()},
	})
	return nil
}

// Slots derives the time-slot grid of one trip day. A day outside the trip
// has no slots.
func (s *PlanBoxService) Slots(ctx context.Context, trip domain.Trip, day int) ([]domain.TimeSlot, error) {
	if !trip.HasDay(day) {
		return []domain.TimeSlot{}, nil
	}
	boxes, err := s.List(ctx, trip)
	if err != nil {
		return nil, err
	}
	return schedule.Slots(trip, boxes, day, s.snap), nil
}

// CheckConflict reports whether p overlaps the trip's boxes and, if so,
// suggests the next start where it fits.
func (s *PlanBoxService) CheckConflict(ctx context.Context, trip domain.Trip, p domain.Placement) (domain.ConflictResult, error) {
	if err := schedule.ValidatePlacement(p, trip); err != nil {
		return domain.ConflictResult{}, err
	}
	boxes, err := s.List(ctx, trip)
	if err != nil {
		return domain.ConflictResult{}, err
	}
	return schedule.Detect(p, boxes, schedule.WindowOf(trip.Settings)), nil
}

// Health pings the plan box store.
func (s *PlanBoxService) Health(ctx context.Context) error {
	if err := s.boxes.Ping(ctx); err != nil {
		return s.persistence("ping", err)
	}
	return nil
}

func (s *PlanBoxService) persistence(op string, err error) error {
	s.logger.Error("plan box store failure", "op", op, "error", err)
	return &domain.PersistenceError{Op: op, Err: err}
}
