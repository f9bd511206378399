package service_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/events"
	"github.com/tabiplan/planner/internal/repo"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	create    func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID   func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	list      func(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error)
	listPaged func(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update    func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	delete    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) List(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	return m.list(ctx, ownerID)
}
func (m *mockTripRepo) ListPaged(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.listPaged(ctx, ownerID, p)
}
func (m *mockTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.update(ctx, trip)
}
func (m *mockTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

// mockPlanBoxRepo is a hand-written test double for repo.PlanBoxRepo.
type mockPlanBoxRepo struct {
	listAll func(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error)
	get     func(ctx context.Context, tripID, id uuid.UUID) (domain.PlanBox, error)
	upsert  func(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error)
	delete  func(ctx context.Context, tripID, id uuid.UUID) error
	ping    func(ctx context.Context) error
}

func (m *mockPlanBoxRepo) ListAll(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error) {
	return m.listAll(ctx, tripID)
}
func (m *mockPlanBoxRepo) Get(ctx context.Context, tripID, id uuid.UUID) (domain.PlanBox, error) {
	return m.get(ctx, tripID, id)
}
func (m *mockPlanBoxRepo) Upsert(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error) {
	return m.upsert(ctx, box)
}
func (m *mockPlanBoxRepo) Delete(ctx context.Context, tripID, id uuid.UUID) error {
	return m.delete(ctx, tripID, id)
}
func (m *mockPlanBoxRepo) Ping(ctx context.Context) error {
	return m.ping(ctx)
}

var _ repo.PlanBoxRepo = (*mockPlanBoxRepo)(nil)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
