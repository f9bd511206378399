package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/planner"
	"github.com/tabiplan/planner/internal/service"
)

// PointBody is a pointer position in canvas pixels.
type PointBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OpenSessionRequest is the optional body of POST /trips/{tripId}/sessions.
// It carries the canvas geometry the client draws with.
type OpenSessionRequest struct {
	Origin      PointBody `json:"origin"`
	ColumnWidth float64   `json:"column_width"`
	RowHeight   float64   `json:"row_height"`
}

// Layout is the grid geometry of a session.
type Layout struct {
	Origin      PointBody        `json:"origin"`
	ColumnWidth float64          `json:"column_width"`
	RowHeight   float64          `json:"row_height"`
	SnapMinutes int              `json:"snap_minutes"`
	Days        int              `json:"days"`
	WindowStart domain.TimeOfDay `json:"window_start"`
	WindowEnd   domain.TimeOfDay `json:"window_end"`
}

// BoxStatus is the sync state of one box in a session.
type BoxStatus struct {
	ID      uuid.UUID `json:"id"`
	State   string    `json:"state"`
	Deleted bool      `json:"deleted,omitempty"`
}

// Session is the API representation of a planner session.
type Session struct {
	ID       uuid.UUID        `json:"id"`
	TripID   uuid.UUID        `json:"trip_id"`
	Source   string           `json:"source"`
	Policy   string           `json:"failure_policy"`
	State    string           `json:"state"`
	Layout   Layout           `json:"layout"`
	Boxes    []domain.PlanBox `json:"boxes"`
	Statuses []BoxStatus      `json:"statuses"`
}

// BeginDragRequest starts a gesture. A box_id moves that box; otherwise the
// template of category is cloned.
type BeginDragRequest struct {
	BoxID    *uuid.UUID      `json:"box_id,omitempty"`
	Category domain.Category `json:"category,omitempty"`
	Position PointBody       `json:"position"`
}

// PointerRequest is the body of drag move and drop.
type PointerRequest struct {
	Position PointBody `json:"position"`
}

// Target is the grid cell under the pointer.
type Target struct {
	Day   int              `json:"day"`
	Start domain.TimeOfDay `json:"start"`
	Key   string           `json:"key"`
}

// TargetResponse answers begin and move. Target is null outside the grid.
type TargetResponse struct {
	Target *Target `json:"target"`
}

// DropResponse is the outcome of a finished gesture.
type DropResponse struct {
	Outcome  string                 `json:"outcome"`
	Box      *domain.PlanBox        `json:"box,omitempty"`
	Conflict *domain.ConflictResult `json:"conflict,omitempty"`
}

// DropFailure is returned with 503 when a drop was applied locally but the
// store write failed. Under keep_dirty the box stays on the board and is
// reported; under rollback a new box is discarded and Box is omitted.
type DropFailure struct {
	Error  ErrorDetail  `json:"error"`
	Result DropResponse `json:"result"`
}

// RetryFailure is returned with 503 when some writes are still failing.
type RetryFailure struct {
	Error   ErrorDetail `json:"error"`
	Session Session     `json:"session"`
}

// OpenSession handles POST /trips/{tripId}/sessions.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var tripID uuid.UUID
	if !pathParam(w, r, "tripId", &tripID) {
		return
	}
	var layout *planner.Layout
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		var body OpenSessionRequest
		if !decodeBody(w, r, &body) {
			return
		}
		layout = &planner.Layout{
			Origin:      planner.Point(body.Origin),
			ColumnWidth: body.ColumnWidth,
			RowHeight:   body.RowHeight,
		}
	}

	view, err := s.sessions.Open(r.Context(), owner, tripID, layout)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusCreated, sessionToResponse(view))
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.View(owner, id)
	if err != nil {
		s.writeError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(view))
}

// CloseSession handles DELETE /sessions/{sessionId}.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Close(owner, id); err != nil {
		s.writeError(w, r, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BeginDrag handles POST /sessions/{sessionId}/drag/begin.
// 409 gesture_state when another gesture is still active.
func (s *Server) BeginDrag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var body BeginDragRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req := service.BeginDrag{Category: body.Category, Position: planner.Point(body.Position)}
	if body.BoxID != nil {
		req.BoxID = *body.BoxID
	}
	target, err := s.sessions.Begin(owner, id, req)
	if err != nil {
		s.writeError(w, r, err, "session or plan box not found")
		return
	}
	writeJSON(w, http.StatusOK, TargetResponse{Target: targetToResponse(target)})
}

// MoveDrag handles POST /sessions/{sessionId}/drag/move.
func (s *Server) MoveDrag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var body PointerRequest
	if !decodeBody(w, r, &body) {
		return
	}
	target, err := s.sessions.Move(owner, id, planner.Point(body.Position))
	if err != nil {
		s.writeError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, TargetResponse{Target: targetToResponse(target)})
}

// DropDrag handles POST /sessions/{sessionId}/drag/drop.
// A rejected drop answers 409 with the ConflictResult; nothing changed.
func (s *Server) DropDrag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var body PointerRequest
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.sessions.Drop(r.Context(), owner, id, planner.Point(body.Position))
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			failure := persistenceBody()
			writeJSON(w, http.StatusServiceUnavailable, DropFailure{Error: failure.Error, Result: dropToResponse(res)})
			return
		}
		s.writeError(w, r, err, "session not found")
		return
	}
	if res.Outcome == planner.OutcomeRejected && res.Conflict != nil {
		writeJSON(w, http.StatusConflict, conflictBody(*res.Conflict))
		return
	}
	writeJSON(w, http.StatusOK, dropToResponse(res))
}

// CancelDrag handles POST /sessions/{sessionId}/drag/cancel.
func (s *Server) CancelDrag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	res, err := s.sessions.Cancel(owner, id)
	if err != nil {
		s.writeError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, dropToResponse(res))
}

// RetrySession handles POST /sessions/{sessionId}/retry. Entries that still
// fail are reported with 503 alongside the session state.
func (s *Server) RetrySession(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := sessionParams(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.Retry(r.Context(), owner, id)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) && view.ID != uuid.Nil {
			failure := persistenceBody()
			writeJSON(w, http.StatusServiceUnavailable, RetryFailure{Error: failure.Error, Session: sessionToResponse(view)})
			return
		}
		s.writeError(w, r, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(view))
}

func sessionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := actor(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	var id uuid.UUID
	if !pathParam(w, r, "sessionId", &id) {
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

// --- mapping helpers --------------------------------------------------------

func sessionToResponse(v service.SessionView) Session {
	statuses := make([]BoxStatus, len(v.Statuses))
	for i, st := range v.Statuses {
		statuses[i] = BoxStatus{ID: st.ID, State: string(st.State), Deleted: st.Deleted}
	}
	boxes := v.Boxes
	if boxes == nil {
		boxes = []domain.PlanBox{}
	}
	return Session{
		ID:     v.ID,
		TripID: v.TripID,
		Source: string(v.Source),
		Policy: v.Policy.String(),
		State:  v.State.String(),
		Layout: Layout{
			Origin:      PointBody(v.Layout.Origin),
			ColumnWidth: v.Layout.ColumnWidth,
			RowHeight:   v.Layout.RowHeight,
			SnapMinutes: v.Layout.SnapMinutes,
			Days:        v.Layout.Days,
			WindowStart: domain.TimeFromMinutes(v.Layout.Window.Start),
			WindowEnd:   domain.TimeFromMinutes(v.Layout.Window.End),
		},
		Boxes:    boxes,
		Statuses: statuses,
	}
}

func targetToResponse(t *planner.Target) *Target {
	if t == nil {
		return nil
	}
	return &Target{Day: t.Day, Start: t.Start, Key: t.Key()}
}

func dropToResponse(res planner.DropResult) DropResponse {
	out := DropResponse{Outcome: string(res.Outcome), Conflict: res.Conflict}
	// A rolled back clone drop has no box to report.
	if (res.Outcome == planner.OutcomeCreated || res.Outcome == planner.OutcomeRelocated) && res.Box.ID != uuid.Nil {
		box := res.Box
		out.Box = &box
	}
	return out
}
