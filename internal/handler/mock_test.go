package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/handler"
	"github.com/tabiplan/planner/internal/middleware"
	"github.com/tabiplan/planner/internal/planner"
	"github.com/tabiplan/planner/internal/service"
)

// testOwner is the principal every request acts as.
var testOwner = uuid.MustParse("6f1c2c1e-3d2b-4c55-9a55-0c6f0e0f4a11")

// ---- mock TripServicer -----------------------------------------------------

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create    func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID   func(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error)
	getOwned  func(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error)
	listPaged func(ctx context.Context, actor uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update    func(ctx context.Context, actor uuid.UUID, trip domain.Trip) (domain.Trip, error)
	delete    func(ctx context.Context, actor, id uuid.UUID) error
}

func (m *mockTripServicer) Create(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	return m.create(ctx, t)
}
func (m *mockTripServicer) GetByID(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, actor, id)
}
func (m *mockTripServicer) GetOwned(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error) {
	return m.getOwned(ctx, actor, id)
}
func (m *mockTripServicer) ListPaged(ctx context.Context, actor uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.listPaged(ctx, actor, p)
}
func (m *mockTripServicer) Update(ctx context.Context, actor uuid.UUID, t domain.Trip) (domain.Trip, error) {
	return m.update(ctx, actor, t)
}
func (m *mockTripServicer) Delete(ctx context.Context, actor, id uuid.UUID) error {
	return m.delete(ctx, actor, id)
}

var _ handler.TripServicer = (*mockTripServicer)(nil)

// tripsReturning answers every lookup with trip.
func tripsReturning(trip domain.Trip) *mockTripServicer {
	get := func(_ context.Context, _, id uuid.UUID) (domain.Trip, error) {
		if id != trip.ID {
			return domain.Trip{}, domain.ErrNotFound
		}
		return trip, nil
	}
	return &mockTripServicer{getByID: get, getOwned: get}
}

// ---- mock PlanBoxServicer --------------------------------------------------

type mockPlanBoxServicer struct {
	list          func(ctx context.Context, trip domain.Trip) ([]domain.PlanBox, error)
	get           func(ctx context.Context, trip domain.Trip, id uuid.UUID) (domain.PlanBox, error)
	save          func(ctx context.Context, trip domain.Trip, box domain.PlanBox, opts service.SaveOptions) (domain.PlanBox, error)
	delete        func(ctx context.Context, trip domain.Trip, id uuid.UUID) error
	slots         func(ctx context.Context, trip domain.Trip, day int) ([]domain.TimeSlot, error)
	checkConflict func(ctx context.Context, trip domain.Trip, p domain.Placement) (domain.ConflictResult, error)
	health        func(ctx context.Context) error
}

func (m *mockPlanBoxServicer) List(ctx context.Context, trip domain.Trip) ([]domain.PlanBox, error) {
	return m.list(ctx, trip)
}
func (m *mockPlanBoxServicer) Get(ctx context.Context, trip domain.Trip, id uuid.UUID) (domain.PlanBox, error) {
	return m.get(ctx, trip, id)
}
func (m *mockPlanBoxServicer) Save(ctx context.Context, trip domain.Trip, box domain.PlanBox, opts service.SaveOptions) (domain.PlanBox, error) {
	return m.save(ctx, trip, box, opts)
}
func (m *mockPlanBoxServicer) Delete(ctx context.Context, trip domain.Trip, id uuid.UUID) error {
	return m.delete(ctx, trip, id)
}
func (m *mockPlanBoxServicer) Slots(ctx context.Context, trip domain.Trip, day int) ([]domain.TimeSlot, error) {
	return m.slots(ctx, trip, day)
}
func (m *mockPlanBoxServicer) CheckConflict(ctx context.Context, trip domain.Trip, p domain.Placement) (domain.ConflictResult, error) {
	return m.checkConflict(ctx, trip, p)
}
func (m *mockPlanBoxServicer) Health(ctx context.Context) error {
	return m.health(ctx)
}

var _ handler.PlanBoxServicer = (*mockPlanBoxServicer)(nil)

// ---- mock ExportServicer ---------------------------------------------------

type mockExportServicer struct {
	export     func(ctx context.Context, actor uuid.UUID) ([]domain.ExportRow, error)
	exportTrip func(ctx context.Context, trip domain.Trip) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, actor uuid.UUID) ([]domain.ExportRow, error) {
	return m.export(ctx, actor)
}
func (m *mockExportServicer) ExportTrip(ctx context.Context, trip domain.Trip) ([]domain.ExportRow, error) {
	return m.exportTrip(ctx, trip)
}

var _ handler.ExportServicer = (*mockExportServicer)(nil)

// ---- mock SessionServicer --------------------------------------------------

type mockSessionServicer struct {
	open   func(ctx context.Context, actor, tripID uuid.UUID, layout *planner.Layout) (service.SessionView, error)
	view   func(actor, id uuid.UUID) (service.SessionView, error)
	begin  func(actor, id uuid.UUID, req service.BeginDrag) (*planner.Target, error)
	move   func(actor, id uuid.UUID, pos planner.Point) (*planner.Target, error)
	drop   func(ctx context.Context, actor, id uuid.UUID, pos planner.Point) (planner.DropResult, error)
	cancel func(actor, id uuid.UUID) (planner.DropResult, error)
	retry  func(ctx context.Context, actor, id uuid.UUID) (service.SessionView, error)
	close  func(actor, id uuid.UUID) error
}

func (m *mockSessionServicer) Open(ctx context.Context, actor, tripID uuid.UUID, layout *planner.Layout) (service.SessionView, error) {
	return m.open(ctx, actor, tripID, layout)
}
func (m *mockSessionServicer) View(actor, id uuid.UUID) (service.SessionView, error) {
	return m.view(actor, id)
}
func (m *mockSessionServicer) Begin(actor, id uuid.UUID, req service.BeginDrag) (*planner.Target, error) {
	return m.begin(actor, id, req)
}
func (m *mockSessionServicer) Move(actor, id uuid.UUID, pos planner.Point) (*planner.Target, error) {
	return m.move(actor, id, pos)
}
func (m *mockSessionServicer) Drop(ctx context.Context, actor, id uuid.UUID, pos planner.Point) (planner.DropResult, error) {
	return m.drop(ctx, actor, id, pos)
}
func (m *mockSessionServicer) Cancel(actor, id uuid.UUID) (planner.DropResult, error) {
	return m.cancel(actor, id)
}
func (m *mockSessionServicer) Retry(ctx context.Context, actor, id uuid.UUID) (service.SessionView, error) {
	return m.retry(ctx, actor, id)
}
func (m *mockSessionServicer) Close(actor, id uuid.UUID) error {
	return m.close(actor, id)
}

var _ handler.SessionServicer = (*mockSessionServicer)(nil)

// ---- mock EventStreamer ----------------------------------------------------

type mockStreamer struct {
	got events.Filter
}

func (m *mockStreamer) Stream(w http.ResponseWriter, _ *http.Request, f events.Filter) {
	m.got = f
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
}

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler mounts srv on a chi router the way main.go does, with auth
// disabled so every request acts as testOwner.
func newHTTPHandler(srv *handler.Server) http.Handler {
	r := chi.NewRouter()
	srv.Register(r, middleware.NewAuthHandler(middleware.AuthConfig{DefaultOwner: testOwner}))
	return r
}

func serve(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func tripFixture() domain.Trip {
	return domain.Trip{
		ID:          uuid.New(),
		OwnerID:     testOwner,
		Title:       "Kyoto in February",
		StartDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		Destination: "Kyoto",
		Domestic:    true,
		Settings: domain.TripSettings{
			DisplayStartHour: 8, DisplayEndHour: 22,
			Currency: "JPY", Timezone: "Asia/Tokyo", Visibility: domain.VisibilityPrivate,
		},
		CreatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func boxFixture(trip domain.Trip, day, hour, minute, duration int) domain.PlanBox {
	return domain.PlanBox{
		ID:              uuid.New(),
		TripID:          trip.ID,
		Day:             day,
		HasTimeSet:      true,
		Start:           domain.TimeOfDay{Hour: hour, Minute: minute},
		DurationMinutes: duration,
		Category:        domain.CategorySightseeing,
		Title:           "Fushimi Inari",
		CreatedAt:       time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC),
	}
}
