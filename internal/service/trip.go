// Package service contains the business logic for the trip planner.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/repo"
)

// Publisher receives change notifications after successful writes.
// *events.Broker satisfies it.
type Publisher interface {
	Publish(events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// TripService implements business logic for Trip operations.
type TripService struct {
	repo     repo.TripRepo
	boxes    repo.PlanBoxRepo
	events   Publisher
	currency string
}

// NewTripService constructs a TripService. defaultCurrency fills in trips
// created without one; pub may be nil.
func NewTripService(r repo.TripRepo, boxes repo.PlanBoxRepo, pub Publisher, defaultCurrency string) *TripService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &TripService{repo: r, boxes: boxes, events: pub, currency: defaultCurrency}
}

// Create validates and persists a new trip owned by trip.OwnerID.
func (s *TripService) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	trip = s.normalize(trip)
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}
	created, err := s.repo.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a trip actor may read. Private trips of other owners are
// reported as domain.ErrNotFound.
func (s *TripService) GetByID(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	if !trip.VisibleTo(actor) {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", domain.ErrNotFound)
	}
	return trip, nil
}

// GetOwned returns a trip only when actor owns it. Writes go through this.
func (s *TripService) GetOwned(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetOwned: %w", err)
	}
	if trip.OwnerID != actor {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetOwned: %w", domain.ErrNotFound)
	}
	return trip, nil
}

// List returns every trip owned by actor.
func (s *TripService) List(ctx context.Context, actor uuid.UUID) ([]domain.Trip, error) {
	trips, err := s.repo.List(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, nil
}

// ListPaged returns one page of actor's trips and the total count.
func (s *TripService) ListPaged(ctx context.Context, actor uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	trips, total, err := s.repo.ListPaged(ctx, actor, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.ListPaged: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// Update validates and overwrites the mutable fields of a trip actor owns.
// Shortening a trip is rejected while plan boxes sit on the days it would drop.
func (s *TripService) Update(ctx context.Context, actor uuid.UUID, trip domain.Trip) (domain.Trip, error) {
	current, err := s.GetOwned(ctx, actor, trip.ID)
	if err != nil {
		return domain.Trip{}, err
	}
	trip.OwnerID = current.OwnerID
	trip = s.normalize(trip)
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}

	if trip.DayCount() < current.DayCount() {
		boxes, err := s.boxes.ListAll(ctx, trip.ID)
		if err != nil {
			return domain.Trip{}, &domain.PersistenceError{Op: "list plan boxes", Err: err}
		}
		for _, b := range boxes {
			if !trip.HasDay(b.Day) {
				return domain.Trip{}, fmt.Errorf("%w: plan box %q is scheduled on day %d, which the new dates drop",
					domain.ErrValidation, b.Title, b.Day)
			}
		}
	}

	updated, err := s.repo.Update(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	s.events.Publish(events.Event{
		Type:    events.TypeTripUpdated,
		OwnerID: updated.OwnerID,
		TripID:  updated.ID,
		Data:    map[string]string{"trip_id": updated.ID.String()},
	})
	return updated, nil
}

// Delete removes a trip actor owns together with its plan boxes.
func (s *TripService) Delete(ctx context.Context, actor, id uuid.UUID) error {
	trip, err := s.GetOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}
	s.events.Publish(events.Event{
		Type:    events.TypeTripDeleted,
		OwnerID: trip.OwnerID,
		TripID:  id,
		Data:    map[string]string{"trip_id": id.String()},
	})
	return nil
}

func (s *TripService) normalize(trip domain.Trip) domain.Trip {
	trip.Title = strings.TrimSpace(trip.Title)
	trip.Destination = strings.TrimSpace(trip.Destination)
	trip.Settings = trip.Settings.WithDefaults(s.currency)
	return trip
}

// validateTrip enforces the business rules for a Trip.
// Every failure wraps domain.ErrValidation.
func validateTrip(trip domain.Trip) error {
	st := trip.Settings
	err := validation.Errors{
		"title":      validation.Validate(trip.Title, validation.Required, validation.Length(1, 200)),
		"owner_id":   validation.Validate(trip.OwnerID, validation.By(notNilUUID)),
		"start_date": validation.Validate(trip.StartDate, validation.By(notZeroTime)),
		"end_date":   validation.Validate(trip.EndDate, validation.By(notZeroTime)),
		"settings": validation.ValidateStruct(&st,
			validation.Field(&st.DisplayStartHour, validation.Min(0), validation.Max(23)),
			validation.Field(&st.DisplayEndHour, validation.Min(1), validation.Max(24)),
			validation.Field(&st.Currency, validation.Match(currencyCode)),
			validation.Field(&st.Timezone, validation.By(knownTimezone)),
			validation.Field(&st.Visibility, validation.In(
				domain.VisibilityPrivate, domain.VisibilityShared, domain.VisibilityPublic)),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if trip.EndDate.Before(trip.StartDate) {
		return fmt.Errorf("%w: end_date must not be before start_date", domain.ErrValidation)
	}
	if st.DisplayEndHour <= st.DisplayStartHour {
		return fmt.Errorf("%w: display window must end after it starts", domain.ErrValidation)
	}
	return nil
}

func notNilUUID(v any) error {
	if id, _ := v.(uuid.UUID); id == uuid.Nil {
		return errors.New("is required")
	}
	return nil
}

func notZeroTime(v any) error {
	if t, _ := v.(time.Time); t.IsZero() {
		return errors.New("is required")
	}
	return nil
}

func knownTimezone(v any) error {
	name, _ := v.(string)
	if name == "" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return nil
}
