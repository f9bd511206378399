package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/schedule"
	"github.com/tabiplan/planner/internal/snapshot"
)

// SnapshotStore is the client-side cache a session reads at start and
// rewrites after every confirmed change. *snapshot.Store satisfies it.
type SnapshotStore interface {
	Load(key string) (snapshot.Snapshot, error)
	Save(key string, snap snapshot.Snapshot) error
}

// Source records where a session's initial boxes came from.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceRemote   Source = "remote"
)

// ErrStaleSnapshot marks a snapshot that exists but may not be trusted.
var ErrStaleSnapshot = errors.New("snapshot: stale")

// Options configure Open. The zero value is usable.
type Options struct {
	Policy FailurePolicy
	// Layout overrides the canvas geometry (origin, column width, row
	// height). Days, window and snap always follow the trip.
	Layout *Layout
	// SnapMinutes is the grid granularity; zero means 15.
	SnapMinutes int
	// MaxSnapshotAge discards snapshots older than this; zero disables the check.
	MaxSnapshotAge time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Session is one planner view of a trip: a Board, the DragSession acting on
// it, and the snapshot key it keeps current. Events on a session are
// serialized through Do.
type Session struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	TripID  uuid.UUID
	Source  Source

	mu    sync.Mutex
	board *Board
	drag  *DragSession
}

// Do runs fn with exclusive access to the session's board and drag state.
func (s *Session) Do(fn func(board *Board, drag *DragSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.board, s.drag)
}

// Open starts a session for trip.
//
// The client snapshot is used when it exists, decodes cleanly and is not
// stale; otherwise the boxes are listed from the store and the snapshot is
// rewritten. A failing store read returns a *domain.PersistenceError.
func Open(ctx context.Context, trip domain.Trip, store Store, snaps SnapshotStore, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	key := snapshot.Key(trip.OwnerID, trip.ID)

	boxes, err := fromSnapshot(snaps, key, trip, now(), opts.MaxSnapshotAge)
	source := SourceSnapshot
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoSnapshot) {
			logger.Warn("discarding client snapshot", "trip_id", trip.ID, "error", err)
		}
		boxes, err = store.ListAll(ctx, trip.ID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list plan boxes", Err: err}
		}
		source = SourceRemote
	}

	board := NewBoard(trip, boxes, store, opts.Policy)
	board.now = now
	save := func(boxes []domain.PlanBox) {
		snap, err := snapshot.New(trip, boxes, now().UTC())
		if err == nil {
			err = snaps.Save(key, snap)
		}
		if err != nil {
			logger.Warn("saving client snapshot", "trip_id", trip.ID, "error", err)
		}
	}
	board.OnChange(save)
	if source == SourceRemote {
		save(board.Boxes())
	}

	layout := DefaultLayout(trip, opts.SnapMinutes)
	if o := opts.Layout; o != nil {
		layout.Origin = o.Origin
		if o.ColumnWidth > 0 {
			layout.ColumnWidth = o.ColumnWidth
		}
		if o.RowHeight > 0 {
			layout.RowHeight = o.RowHeight
		}
	}

	return &Session{
		ID:      uuid.New(),
		OwnerID: trip.OwnerID,
		TripID:  trip.ID,
		Source:  source,
		board:   board,
		drag:    NewDragSession(board, layout),
	}, nil
}

// fromSnapshot loads and decodes the snapshot under key, rejecting one that
// belongs to another trip, predates the trip's last update, or exceeds maxAge.
// Every decoded box must also pass the plan box rules.
func fromSnapshot(snaps SnapshotStore, key string, trip domain.Trip, now time.Time, maxAge time.Duration) ([]domain.PlanBox, error) {
	snap, err := snaps.Load(key)
	if err != nil {
		return nil, err
	}
	switch {
	case snap.TripID != trip.ID:
		return nil, fmt.Errorf("%w: saved for trip %s", ErrStaleSnapshot, snap.TripID)
	case snap.SavedAt.Before(trip.UpdatedAt):
		return nil, fmt.Errorf("%w: saved %s before trip update %s", ErrStaleSnapshot,
			snap.SavedAt.Format(time.RFC3339), trip.UpdatedAt.Format(time.RFC3339))
	case maxAge > 0 && now.Sub(snap.SavedAt) > maxAge:
		return nil, fmt.Errorf("%w: older than %s", ErrStaleSnapshot, maxAge)
	}

	boxes, err := snap.Boxes()
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(boxes))
	for _, b := range boxes {
		if b.TripID != trip.ID {
			return nil, fmt.Errorf("%w: plan box %s belongs to trip %s", snapshot.ErrMalformed, b.ID, b.TripID)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: plan box %s appears twice", snapshot.ErrMalformed, b.ID)
		}
		seen[b.ID] = struct{}{}
		if err := schedule.Validate(b, trip); err != nil {
			return nil, fmt.Errorf("%w: plan box %s: %v", snapshot.ErrMalformed, b.ID, err)
		}
	}
	return boxes, nil
}
