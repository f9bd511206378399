package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/service"
)

// PlanBoxRequest is the body of POST /trips/{tripId}/planboxes.
// A request carrying an existing ID replaces that box.
type PlanBoxRequest struct {
	ID              *uuid.UUID             `json:"id,omitempty"`
	Day             int                    `json:"day"`
	HasTimeSet      bool                   `json:"has_time_set"`
	Start           *domain.TimeOfDay      `json:"start,omitempty"`
	DurationMinutes int                    `json:"duration_minutes"`
	Category        domain.Category        `json:"category"`
	Title           string                 `json:"title"`
	Memo            string                 `json:"memo,omitempty"`
	Location        string                 `json:"location,omitempty"`
	Cost            *int64                 `json:"cost,omitempty"`
	Currency        string                 `json:"currency,omitempty"`
	Position        *domain.CanvasPosition `json:"position,omitempty"`
	AllowOverflow   bool                   `json:"allow_overflow"`
}

// ConflictRequest is the body of POST /trips/{tripId}/conflicts.
type ConflictRequest struct {
	Day             int              `json:"day"`
	Start           domain.TimeOfDay `json:"start"`
	DurationMinutes int              `json:"duration_minutes"`
	ExcludeID       *uuid.UUID       `json:"exclude_id,omitempty"`
}

// ListPlanBoxes handles GET /trips/{tripId}/planboxes, newest first.
func (s *Server) ListPlanBoxes(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	boxes, err := s.boxes.List(r.Context(), trip)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, boxes)
}

// SavePlanBox handles POST /trips/{tripId}/planboxes.
// An overlap is answered with 409 and the ConflictResult unless ?force=true.
func (s *Server) SavePlanBox(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, true)
	if !ok {
		return
	}
	var force *bool
	if !queryParam(w, r, "force", &force) {
		return
	}
	var body PlanBoxRequest
	if !decodeBody(w, r, &body) {
		return
	}

	saved, err := s.boxes.Save(r.Context(), trip, requestToPlanBox(body),
		service.SaveOptions{Force: force != nil && *force})
	if err != nil {
		s.writeError(w, r, err, "plan box not found")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// GetPlanBox handles GET /trips/{tripId}/planboxes/{boxId}.
func (s *Server) GetPlanBox(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	var id uuid.UUID
	if !pathParam(w, r, "boxId", &id) {
		return
	}
	box, err := s.boxes.Get(r.Context(), trip, id)
	if err != nil {
		s.writeError(w, r, err, "plan box not found")
		return
	}
	writeJSON(w, http.StatusOK, box)
}

// DeletePlanBox handles DELETE /trips/{tripId}/planboxes/{boxId}.
func (s *Server) DeletePlanBox(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, true)
	if !ok {
		return
	}
	var id uuid.UUID
	if !pathParam(w, r, "boxId", &id) {
		return
	}
	if err := s.boxes.Delete(r.Context(), trip, id); err != nil {
		s.writeError(w, r, err, "plan box not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSlots handles GET /trips/{tripId}/days/{day}/slots.
// A day outside the trip yields an empty list.
func (s *Server) GetSlots(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	var day int
	if !pathParam(w, r, "day", &day) {
		return
	}
	slots, err := s.boxes.Slots(r.Context(), trip, day)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// CheckConflict handles POST /trips/{tripId}/conflicts. It always answers
// 200; the body says whether the placement conflicts and where it would fit.
func (s *Server) CheckConflict(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	var body ConflictRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p := domain.Placement{Day: body.Day, Start: body.Start, DurationMinutes: body.DurationMinutes}
	if body.ExcludeID != nil {
		p.ExcludeID = *body.ExcludeID
	}
	result, err := s.boxes.CheckConflict(r.Context(), trip, p)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func requestToPlanBox(body PlanBoxRequest) domain.PlanBox {
	b := domain.PlanBox{
		Day:             body.Day,
		HasTimeSet:      body.HasTimeSet,
		DurationMinutes: body.DurationMinutes,
		Category:        body.Category,
		Title:           body.Title,
		Memo:            body.Memo,
		Location:        body.Location,
		Cost:            body.Cost,
		Currency:        body.Currency,
		Position:        body.Position,
		AllowOverflow:   body.AllowOverflow,
	}
	if body.ID != nil {
		b.ID = *body.ID
	}
	if body.Start != nil {
		b.Start = *body.Start
	}
	return b
}
