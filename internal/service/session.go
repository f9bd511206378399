package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/planner"
)

// SessionView is the client-visible state of a planner session.
type SessionView struct {
	ID       uuid.UUID
	TripID   uuid.UUID
	Source   planner.Source
	Policy   planner.FailurePolicy
	State    planner.State
	Layout   planner.Layout
	Boxes    []domain.PlanBox
	Statuses []planner.Status
}

// BeginDrag describes the start of a gesture. A non-nil BoxID moves that
// box; otherwise a Category template is cloned.
type BeginDrag struct {
	BoxID    uuid.UUID
	Category domain.Category
	Position planner.Point
}

// SessionService opens planner sessions and drives their drag gestures.
// Sessions live in the registry; each one is private to the actor that
// opened it.
type SessionService struct {
	trips    *TripService
	store    planner.Store
	snaps    planner.SnapshotStore
	registry *planner.Registry
	events   Publisher
	opts     planner.Options
}

// NewSessionService constructs a SessionService. opts supplies the failure
// policy, snap granularity and logger applied to every session.
func NewSessionService(trips *TripService, store planner.Store, snaps planner.SnapshotStore,
	registry *planner.Registry, pub Publisher, opts planner.Options) *SessionService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &SessionService{trips: trips, store: store, snaps: snaps, registry: registry, events: pub, opts: opts}
}

// Open starts a session on a trip actor owns. layout may be nil to use the
// default grid geometry.
func (s *SessionService) Open(ctx context.Context, actor, tripID uuid.UUID, layout *planner.Layout) (SessionView, error) {
	trip, err := s.trips.GetOwned(ctx, actor, tripID)
	if err != nil {
		return SessionView{}, err
	}
	opts := s.opts
	opts.Layout = layout
	session, err := planner.Open(ctx, trip, s.store, s.snaps, opts)
	if err != nil {
		return SessionView{}, err
	}
	s.registry.Add(session)
	return s.view(session)
}

// View returns the current state of a session.
func (s *SessionService) View(actor, id uuid.UUID) (SessionView, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(session)
}

// Begin starts a drag gesture and returns the cell under the pointer, if any.
func (s *SessionService) Begin(actor, id uuid.UUID, req BeginDrag) (*planner.Target, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return nil, err
	}
	var target *planner.Target
	err = session.Do(func(_ *planner.Board, drag *planner.DragSession) error {
		item := domain.PlanBox{ID: req.BoxID}
		clone := req.BoxID == uuid.Nil
		if clone {
			item, err = planner.Template(req.Category)
			if err != nil {
				return err
			}
		}
		target, err = drag.Begin(item, clone, req.Position)
		return err
	})
	return target, err
}

// Move updates the pointer position of the active gesture.
func (s *SessionService) Move(actor, id uuid.UUID, pos planner.Point) (*planner.Target, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return nil, err
	}
	var target *planner.Target
	err = session.Do(func(_ *planner.Board, drag *planner.DragSession) error {
		target, err = drag.Move(pos)
		return err
	})
	return target, err
}

// Drop finishes the active gesture at pos. Boxes the store confirmed are
// published to the owner's other tabs.
func (s *SessionService) Drop(ctx context.Context, actor, id uuid.UUID, pos planner.Point) (planner.DropResult, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return planner.DropResult{}, err
	}
	var res planner.DropResult
	err = session.Do(func(_ *planner.Board, drag *planner.DragSession) error {
		res, err = drag.Drop(ctx, pos)
		return err
	})
	if err == nil && (res.Outcome == planner.OutcomeCreated || res.Outcome == planner.OutcomeRelocated) {
		s.events.Publish(events.Event{
			Type:    events.TypePlanBoxSaved,
			OwnerID: session.OwnerID,
			TripID:  session.TripID,
			Data:    res.Box,
		})
	}
	return res, err
}

// Cancel abandons the active gesture.
func (s *SessionService) Cancel(actor, id uuid.UUID) (planner.DropResult, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return planner.DropResult{}, err
	}
	var res planner.DropResult
	err = session.Do(func(_ *planner.Board, drag *planner.DragSession) error {
		res, err = drag.Cancel()
		return err
	})
	return res, err
}

// Retry re-sends the session's failed writes and returns the resulting view.
// The view is returned alongside any persistence error so clients can show
// which entries are still failing.
func (s *SessionService) Retry(ctx context.Context, actor, id uuid.UUID) (SessionView, error) {
	session, err := s.get(actor, id)
	if err != nil {
		return SessionView{}, err
	}
	retryErr := session.Do(func(board *planner.Board, _ *planner.DragSession) error {
		return board.Retry(ctx)
	})
	view, err := s.view(session)
	if err != nil {
		return SessionView{}, err
	}
	return view, retryErr
}

// Close forgets a session.
func (s *SessionService) Close(actor, id uuid.UUID) error {
	if _, err := s.get(actor, id); err != nil {
		return err
	}
	s.registry.Remove(id)
	return nil
}

func (s *SessionService) get(actor, id uuid.UUID) (*planner.Session, error) {
	session, ok := s.registry.Get(id)
	if !ok || session.OwnerID != actor {
		return nil, fmt.Errorf("service.SessionService: session %s: %w", id, domain.ErrNotFound)
	}
	return session, nil
}

func (s *SessionService) view(session *planner.Session) (SessionView, error) {
	v := SessionView{ID: session.ID, TripID: session.TripID, Source: session.Source}
	err := session.Do(func(board *planner.Board, drag *planner.DragSession) error {
		v.Policy = board.Policy()
		v.State = drag.State()
		v.Layout = drag.Layout()
		v.Boxes = board.Boxes()
		v.Statuses = board.Statuses()
		return nil
	})
	return v, err
}
