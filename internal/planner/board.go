// Package planner holds the session-scoped state of one planner view: the
// optimistic Board of a trip's plan boxes and the DragSession state machine
// that turns pointer gestures into placements on it.
//
// Nothing in this package is shared between sessions. Each Session owns its
// Board and DragSession and callers serialize events on a session with Do.
package planner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/schedule"
)

// Store is the persistence collaborator a Board writes through.
// repo.PlanBoxRepo satisfies it.
type Store interface {
	ListAll(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error)
	Upsert(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error)
	Delete(ctx context.Context, tripID, id uuid.UUID) error
}

// FailurePolicy decides what happens to a local change whose remote write failed.
type FailurePolicy int

const (
	// KeepDirty keeps the local change and marks it failed until Retry succeeds.
	KeepDirty FailurePolicy = iota
	// Rollback restores the last value the store confirmed.
	Rollback
)

func (p FailurePolicy) String() string {
	if p == Rollback {
		return "rollback"
	}
	return "keep_dirty"
}

// ParseFailurePolicy converts a config value into a FailurePolicy.
// The empty string selects KeepDirty.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep_dirty":
		return KeepDirty, nil
	case "rollback":
		return Rollback, nil
	}
	return KeepDirty, fmt.Errorf("unknown failure policy %q (want keep_dirty or rollback)", s)
}

// SyncState tracks a local entry against the store.
type SyncState string

const (
	Synced  SyncState = "synced"
	Pending SyncState = "pending"
	Failed  SyncState = "failed"
)

type pendingOp int

const (
	opUpsert pendingOp = iota
	opDelete
)

type entry struct {
	box    domain.PlanBox
	state  SyncState
	op     pendingOp
	synced *domain.PlanBox // last value confirmed by the store; nil if never stored
}

// Status is the sync state of one box as reported to clients.
type Status struct {
	ID      uuid.UUID
	State   SyncState
	Deleted bool
}

// Board is the local, optimistic copy of one trip's plan boxes.
//
// Every mutation runs in two phases: the change is validated, checked for
// conflicts and applied locally first, then written through the Store. When
// the store confirms, its record replaces the local one. When it fails, the
// board applies its FailurePolicy and returns a *domain.PersistenceError.
// Nothing is retried automatically.
//
// A Board is not safe for concurrent use.
type Board struct {
	trip     domain.Trip
	store    Store
	policy   FailurePolicy
	entries  map[uuid.UUID]*entry
	now      func() time.Time
	onChange func([]domain.PlanBox)
}

// NewBoard returns a board seeded with boxes, all treated as synced.
func NewBoard(trip domain.Trip, boxes []domain.PlanBox, store Store, policy FailurePolicy) *Board {
	b := &Board{
		trip:    trip,
		store:   store,
		policy:  policy,
		entries: make(map[uuid.UUID]*entry, len(boxes)),
		now:     time.Now,
	}
	for _, box := range boxes {
		stored := box
		b.entries[box.ID] = &entry{box: box, state: Synced, synced: &stored}
	}
	return b
}

// OnChange registers fn to be called with the visible boxes after every
// confirmed write. Sessions use it to refresh the client snapshot.
func (b *Board) OnChange(fn func([]domain.PlanBox)) {
	b.onChange = fn
}

// Trip returns the trip the board schedules.
func (b *Board) Trip() domain.Trip { return b.trip }

// Policy returns the board's failure policy.
func (b *Board) Policy() FailurePolicy { return b.policy }

// Boxes returns the visible plan boxes, newest first, matching the store's
// list-all order. Locally deleted boxes are hidden even before the delete is
// confirmed.
func (b *Board) Boxes() []domain.PlanBox {
	out := make([]domain.PlanBox, 0, len(b.entries))
	for _, e := range b.entries {
		if e.op == opDelete && e.state != Synced {
			continue
		}
		out = append(out, e.box)
	}
	slices.SortFunc(out, func(x, y domain.PlanBox) int {
		return cmp.Or(
			y.CreatedAt.Compare(x.CreatedAt),
			cmp.Compare(x.ID.String(), y.ID.String()),
		)
	})
	return out
}

// Box returns the visible box with the given ID.
func (b *Board) Box(id uuid.UUID) (domain.PlanBox, bool) {
	e, ok := b.entries[id]
	if !ok || (e.op == opDelete && e.state != Synced) {
		return domain.PlanBox{}, false
	}
	return e.box, true
}

// Statuses reports every entry that is not synced, ordered by ID.
func (b *Board) Statuses() []Status {
	out := []Status{}
	for id, e := range b.entries {
		if e.state == Synced {
			continue
		}
		out = append(out, Status{ID: id, State: e.state, Deleted: e.op == opDelete})
	}
	slices.SortFunc(out, func(x, y Status) int { return cmp.Compare(x.ID.String(), y.ID.String()) })
	return out
}

// Check runs conflict detection for p against the visible boxes.
func (b *Board) Check(p domain.Placement) domain.ConflictResult {
	return schedule.Detect(p, b.Boxes(), schedule.WindowOf(b.trip.Settings))
}

// Place creates a new plan box, or replaces an existing one when box.ID is
// already on the board. A nil ID is assigned a fresh UUID.
//
// Returns a wrapped domain.ErrValidation before any conflict check, a
// *domain.ConflictError (nothing mutated) when the box overlaps another, or
// a *domain.PersistenceError when the store write fails. In the last case the
// returned box reflects the local state left by the failure policy.
func (b *Board) Place(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error) {
	if box.ID == uuid.Nil {
		box.ID = uuid.New()
	}
	box.TripID = b.trip.ID
	if cur, ok := b.entries[box.ID]; ok {
		box.CreatedAt = cur.box.CreatedAt
	}
	if box.CreatedAt.IsZero() {
		box.CreatedAt = b.now().UTC()
	}
	box.UpdatedAt = b.now().UTC()
	return b.commit(ctx, box)
}

// Relocate moves an existing box to a new day and start time, keeping its
// duration. The box becomes timed if it was not already.
func (b *Board) Relocate(ctx context.Context, id uuid.UUID, day int, start domain.TimeOfDay) (domain.PlanBox, error) {
	box, ok := b.Box(id)
	if !ok {
		return domain.PlanBox{}, fmt.Errorf("planner.Board.Relocate: plan box %s: %w", id, domain.ErrNotFound)
	}
	box.Day = day
	box.Start = start
	box.HasTimeSet = true
	box.UpdatedAt = b.now().UTC()
	return b.commit(ctx, box)
}

func (b *Board) commit(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error) {
	if err := schedule.Validate(box, b.trip); err != nil {
		return domain.PlanBox{}, err
	}
	if box.HasTimeSet {
		if res := b.Check(domain.PlacementOf(box)); res.Conflict {
			return domain.PlanBox{}, &domain.ConflictError{Result: res}
		}
	}

	// Phase one: apply locally.
	e, ok := b.entries[box.ID]
	if !ok {
		e = &entry{}
		b.entries[box.ID] = e
	}
	e.box, e.state, e.op = box, Pending, opUpsert

	// Phase two: write through.
	stored, err := b.store.Upsert(ctx, box)
	return b.reconcileUpsert(box.ID, stored, err)
}

func (b *Board) reconcileUpsert(id uuid.UUID, stored domain.PlanBox, err error) (domain.PlanBox, error) {
	e := b.entries[id]
	if err == nil {
		confirmed := stored
		e.box, e.state, e.synced = stored, Synced, &confirmed
		b.changed()
		return stored, nil
	}

	perr := &domain.PersistenceError{Op: "upsert plan box " + id.String(), Err: err}
	if b.policy == Rollback {
		b.restore(id, e)
		if e.synced == nil {
			return domain.PlanBox{}, perr
		}
		return e.box, perr
	}
	e.state = Failed
	return e.box, perr
}

// Remove deletes a box locally and then from the store. A box the store no
// longer has counts as deleted.
func (b *Board) Remove(ctx context.Context, id uuid.UUID) error {
	e, ok := b.entries[id]
	if !ok || (e.op == opDelete && e.state != Synced) {
		return fmt.Errorf("planner.Board.Remove: plan box %s: %w", id, domain.ErrNotFound)
	}
	e.state, e.op = Pending, opDelete

	err := b.store.Delete(ctx, b.trip.ID, id)
	return b.reconcileDelete(id, err)
}

func (b *Board) reconcileDelete(id uuid.UUID, err error) error {
	e := b.entries[id]
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		delete(b.entries, id)
		b.changed()
		return nil
	}

	perr := &domain.PersistenceError{Op: "delete plan box " + id.String(), Err: err}
	if b.policy == Rollback {
		b.restore(id, e)
		return perr
	}
	e.state = Failed
	return perr
}

// restore puts back the last confirmed value of an entry, dropping entries
// the store never confirmed.
func (b *Board) restore(id uuid.UUID, e *entry) {
	if e.synced == nil {
		delete(b.entries, id)
		return
	}
	e.box, e.state, e.op = *e.synced, Synced, opUpsert
}

// Retry re-sends every failed entry in ID order. It returns the joined
// persistence errors of the writes that failed again, or nil.
func (b *Board) Retry(ctx context.Context) error {
	ids := make([]uuid.UUID, 0)
	for id, e := range b.entries {
		if e.state == Failed {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(x, y uuid.UUID) int { return cmp.Compare(x.String(), y.String()) })

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := b.entries[id]
		e.state = Pending
		var err error
		if e.op == opDelete {
			err = b.reconcileDelete(id, b.store.Delete(ctx, b.trip.ID, id))
		} else {
			stored, upErr := b.store.Upsert(ctx, e.box)
			_, err = b.reconcileUpsert(id, stored, upErr)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange(b.Boxes())
	}
}
