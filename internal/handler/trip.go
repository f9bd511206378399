package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/tabiplan/planner/internal/domain"
)

// TripRequest is the body of POST /trips and PUT /trips/{tripId}.
type TripRequest struct {
	Title       string               `json:"title"`
	StartDate   openapi_types.Date   `json:"start_date"`
	EndDate     openapi_types.Date   `json:"end_date"`
	Destination *string              `json:"destination,omitempty"`
	Domestic    bool                 `json:"domestic"`
	Settings    *domain.TripSettings `json:"settings,omitempty"`
}

// Trip is the API representation of a trip.
type Trip struct {
	ID          uuid.UUID           `json:"id"`
	OwnerID     uuid.UUID           `json:"owner_id"`
	Title       string              `json:"title"`
	StartDate   openapi_types.Date  `json:"start_date"`
	EndDate     openapi_types.Date  `json:"end_date"`
	DayCount    int                 `json:"day_count"`
	Destination string              `json:"destination,omitempty"`
	Domestic    bool                `json:"domestic"`
	Settings    domain.TripSettings `json:"settings"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var body TripRequest
	if !decodeBody(w, r, &body) {
		return
	}
	trip := requestToTrip(body)
	trip.OwnerID = owner

	created, err := s.trips.Create(r.Context(), trip)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var page, limit *int
	if !queryParam(w, r, "page", &page) || !queryParam(w, r, "limit", &limit) {
		return
	}
	params := domain.NewPaginationParams(page, limit)

	trips, total, err := s.trips.ListPaged(r.Context(), owner, params)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripList{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: int(total)},
	})
}

// GetTrip handles GET /trips/{tripId}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PUT /trips/{tripId}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var id uuid.UUID
	if !pathParam(w, r, "tripId", &id) {
		return
	}
	var body TripRequest
	if !decodeBody(w, r, &body) {
		return
	}
	trip := requestToTrip(body)
	trip.ID = id

	updated, err := s.trips.Update(r.Context(), owner, trip)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{tripId}. Plan boxes go with it.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var id uuid.UUID
	if !pathParam(w, r, "tripId", &id) {
		return
	}
	if err := s.trips.Delete(r.Context(), owner, id); err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadTrip resolves {tripId} for the current actor. owned restricts the
// lookup to trips the actor may modify; otherwise shared and public trips
// are visible too.
func (s *Server) loadTrip(w http.ResponseWriter, r *http.Request, owned bool) (domain.Trip, bool) {
	owner, ok := actor(w, r)
	if !ok {
		return domain.Trip{}, false
	}
	var id uuid.UUID
	if !pathParam(w, r, "tripId", &id) {
		return domain.Trip{}, false
	}
	get := s.trips.GetByID
	if owned {
		get = s.trips.GetOwned
	}
	trip, err := get(r.Context(), owner, id)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return domain.Trip{}, false
	}
	return trip, true
}

// --- mapping helpers --------------------------------------------------------

func requestToTrip(body TripRequest) domain.Trip {
	t := domain.Trip{
		Title:     strings.TrimSpace(body.Title),
		StartDate: body.StartDate.Time,
		EndDate:   body.EndDate.Time,
		Domestic:  body.Domestic,
	}
	if body.Destination != nil {
		t.Destination = strings.TrimSpace(*body.Destination)
	}
	if body.Settings != nil {
		t.Settings = *body.Settings
	}
	return t
}

func tripToResponse(t domain.Trip) Trip {
	return Trip{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		StartDate:   openapi_types.Date{Time: t.StartDate},
		EndDate:     openapi_types.Date{Time: t.EndDate},
		DayCount:    t.DayCount(),
		Destination: t.Destination,
		Domestic:    t.Domestic,
		Settings:    t.Settings,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
