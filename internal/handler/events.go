package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/events"
)

// StreamEvents handles GET /events, the Server-Sent Events feed of the
// actor's plan box and trip changes. ?trip_id= narrows it to one trip.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	var tripID *uuid.UUID
	if !queryParam(w, r, "trip_id", &tripID) {
		return
	}
	f := events.Filter{OwnerID: owner}
	if tripID != nil {
		f.TripID = *tripID
	}
	s.events.Stream(w, r, f)
}
