// Package handler implements the HTTP API of the trip planner on chi.
// All handlers are methods on Server. They are split into resource files
// (trip.go, planbox.go, session.go, ...) and share the error mapping in
// errors.go.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/planner"
	"github.com/tabiplan/planner/internal/service"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining it here, in the consumer, lets handler tests inject a mock
// without touching the service layer or the database.
type TripServicer interface {
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error)
	GetOwned(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error)
	ListPaged(ctx context.Context, actor uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	Update(ctx context.Context, actor uuid.UUID, trip domain.Trip) (domain.Trip, error)
	Delete(ctx context.Context, actor, id uuid.UUID) error
}

// PlanBoxServicer defines the plan box operations the handlers depend on.
type PlanBoxServicer interface {
	List(ctx context.Context, trip domain.Trip) ([]domain.PlanBox, error)
	Get(ctx context.Context, trip domain.Trip, id uuid.UUID) (domain.PlanBox, error)
	Save(ctx context.Context, trip domain.Trip, box domain.PlanBox, opts service.SaveOptions) (domain.PlanBox, error)
	Delete(ctx context.Context, trip domain.Trip, id uuid.UUID) error
	Slots(ctx context.Context, trip domain.Trip, day int) ([]domain.TimeSlot, error)
	CheckConflict(ctx context.Context, trip domain.Trip, p domain.Placement) (domain.ConflictResult, error)
	Health(ctx context.Context) error
}

// ExportServicer defines the export operations the handlers depend on.
type ExportServicer interface {
	Export(ctx context.Context, actor uuid.UUID) ([]domain.ExportRow, error)
	ExportTrip(ctx context.Context, trip domain.Trip) ([]domain.ExportRow, error)
}

// SessionServicer defines the planner session operations the handlers depend on.
type SessionServicer interface {
	Open(ctx context.Context, actor, tripID uuid.UUID, layout *planner.Layout) (service.SessionView, error)
	View(actor, id uuid.UUID) (service.SessionView, error)
	Begin(actor, id uuid.UUID, req service.BeginDrag) (*planner.Target, error)
	Move(actor, id uuid.UUID, pos planner.Point) (*planner.Target, error)
	Drop(ctx context.Context, actor, id uuid.UUID, pos planner.Point) (planner.DropResult, error)
	Cancel(actor, id uuid.UUID) (planner.DropResult, error)
	Retry(ctx context.Context, actor, id uuid.UUID) (service.SessionView, error)
	Close(actor, id uuid.UUID) error
}

// EventStreamer serves the SSE change feed. *events.Broker satisfies it.
type EventStreamer interface {
	Stream(w http.ResponseWriter, r *http.Request, f events.Filter)
}

// Server holds the services every handler reaches through.
// Any dependency may be nil in tests that do not exercise its routes.
type Server struct {
	trips    TripServicer
	boxes    PlanBoxServicer
	export   ExportServicer
	sessions SessionServicer
	events   EventStreamer
	log      *slog.Logger
	openAPI  []byte
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, boxes PlanBoxServicer, export ExportServicer,
	sessions SessionServicer, stream EventStreamer) *Server {
	return &Server{
		trips:    trips,
		boxes:    boxes,
		export:   export,
		sessions: sessions,
		events:   stream,
		log:      slog.Default(),
	}
}

// WithLogger replaces the logger used for unexpected errors.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

// WithOpenAPI sets the document served at /openapi.yaml.
func (s *Server) WithOpenAPI(doc []byte) *Server {
	s.openAPI = doc
	return s
}

// Register mounts every route on r. Health and the API document are public;
// everything else runs behind auth, which must put the owner in the request
// context (see middleware.NewAuthHandler).
func (s *Server) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/trips", s.ListTrips)
		r.Post("/trips", s.CreateTrip)
		r.Route("/trips/{tripId}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Put("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)

			r.Get("/planboxes", s.ListPlanBoxes)
			r.Post("/planboxes", s.SavePlanBox)
			r.Get("/planboxes/{boxId}", s.GetPlanBox)
			r.Delete("/planboxes/{boxId}", s.DeletePlanBox)
			r.Get("/days/{day}/slots", s.GetSlots)
			r.Post("/conflicts", s.CheckConflict)
			r.Get("/export", s.ExportTrip)
			r.Post("/sessions", s.OpenSession)
		})

		r.Get("/export", s.GetExport)

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.CloseSession)
			r.Post("/drag/begin", s.BeginDrag)
			r.Post("/drag/move", s.MoveDrag)
			r.Post("/drag/drop", s.DropDrag)
			r.Post("/drag/cancel", s.CancelDrag)
			r.Post("/retry", s.RetrySession)
		})

		r.Get("/events", s.StreamEvents)
	})
}
