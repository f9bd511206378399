package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
)

// ErrGestureInProgress is returned by Begin while another drag is active.
var ErrGestureInProgress = errors.New("planner: drag gesture already in progress")

// ErrNoGesture is returned by Move, Drop and Cancel when no drag is active.
var ErrNoGesture = errors.New("planner: no drag gesture in progress")

// State is a DragSession state.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateDropping
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateDropping:
		return "dropping"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// DragContext describes the gesture in flight.
// Item is the sidebar template when Clone is set and the board box otherwise.
type DragContext struct {
	Item     domain.PlanBox
	Clone    bool
	Position Point
	Target   *Target
}

// Outcome classifies how a gesture ended.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeRelocated Outcome = "relocated"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// DropResult is what a finished gesture produced. Box is set for created and
// relocated outcomes, Conflict for rejected ones.
type DropResult struct {
	Outcome  Outcome
	Box      domain.PlanBox
	Conflict *domain.ConflictResult
}

// DragSession is the state machine behind one pointer gesture:
//
//	idle -> dragging -> dropping  -> idle
//	                 -> cancelled -> idle
//
// Dropping and cancelled are transient; observers registered with
// OnTransition see every step.
type DragSession struct {
	board  *Board
	layout Layout
	state  State
	active *DragContext

	onTransition func(from, to State)
}

// NewDragSession returns an idle session placing boxes on board.
func NewDragSession(board *Board, layout Layout) *DragSession {
	return &DragSession{board: board, layout: layout}
}

// OnTransition registers fn to observe state changes.
func (d *DragSession) OnTransition(fn func(from, to State)) {
	d.onTransition = fn
}

// State returns the current state.
func (d *DragSession) State() State { return d.state }

// Layout returns the grid geometry used to resolve pointer positions.
func (d *DragSession) Layout() Layout { return d.layout }

// Context returns a copy of the active gesture, or nil when idle.
func (d *DragSession) Context() *DragContext {
	if d.active == nil {
		return nil
	}
	c := *d.active
	return &c
}

// Begin starts a gesture at pos. With clone set, item is a template and the
// drop creates a new box; otherwise item must name a box on the board and the
// drop relocates it.
func (d *DragSession) Begin(item domain.PlanBox, clone bool, pos Point) (*Target, error) {
	if d.state != StateIdle {
		return nil, ErrGestureInProgress
	}
	if !clone {
		current, ok := d.board.Box(item.ID)
		if !ok {
			return nil, fmt.Errorf("planner.DragSession.Begin: plan box %s: %w", item.ID, domain.ErrNotFound)
		}
		item = current
	}
	d.active = &DragContext{Item: item, Clone: clone}
	d.transition(StateDragging)
	return d.Move(pos)
}

// Move records the pointer position and recomputes the target cell.
// The returned target is nil while the pointer is outside the grid.
func (d *DragSession) Move(pos Point) (*Target, error) {
	if d.state != StateDragging {
		return nil, ErrNoGesture
	}
	d.active.Position = pos
	d.active.Target = nil
	if cell, ok := d.layout.CellAt(pos); ok {
		d.active.Target = &cell
	}
	return d.active.Target, nil
}

// Drop finishes the gesture at pos.
//
// Outside any cell the drop is a cancel. A conflicting placement is rejected
// with the conflict result and leaves the board untouched. Validation and
// persistence errors are returned as errors; after a persistence error the
// result still carries the box as the failure policy left it. The session is
// idle again whatever happens.
func (d *DragSession) Drop(ctx context.Context, pos Point) (DropResult, error) {
	target, err := d.Move(pos)
	if err != nil {
		return DropResult{}, err
	}
	if target == nil {
		return d.Cancel()
	}

	d.transition(StateDropping)
	gesture := d.active
	defer d.reset()

	var (
		box     domain.PlanBox
		outcome Outcome
	)
	if gesture.Clone {
		item := gesture.Item
		item.ID = uuid.Nil
		item.Day = target.Day
		item.Start = target.Start
		item.HasTimeSet = true
		item.Position = nil
		box, err = d.board.Place(ctx, item)
		outcome = OutcomeCreated
	} else {
		box, err = d.board.Relocate(ctx, gesture.Item.ID, target.Day, target.Start)
		outcome = OutcomeRelocated
	}

	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &conflict):
		res := conflict.Result
		return DropResult{Outcome: OutcomeRejected, Conflict: &res}, nil
	case errors.Is(err, domain.ErrPersistence):
		return DropResult{Outcome: outcome, Box: box}, err
	case err != nil:
		return DropResult{}, err
	}
	return DropResult{Outcome: outcome, Box: box}, nil
}

// Cancel abandons the active gesture without touching the board.
func (d *DragSession) Cancel() (DropResult, error) {
	if d.state != StateDragging {
		return DropResult{}, ErrNoGesture
	}
	d.transition(StateCancelled)
	d.reset()
	return DropResult{Outcome: OutcomeCancelled}, nil
}

func (d *DragSession) reset() {
	d.active = nil
	d.transition(StateIdle)
}

func (d *DragSession) transition(to State) {
	from := d.state
	d.state = to
	if d.onTransition != nil {
		d.onTransition(from, to)
	}
}
