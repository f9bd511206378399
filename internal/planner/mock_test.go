package planner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/snapshot"
)

var errStoreDown = errors.New("connection refused")

// mockStore is a hand-written test double for Store.
// By default it echoes writes back as stored; set the fields to override.
type mockStore struct {
	listAll func(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error)
	upsert  func(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error)
	delete  func(ctx context.Context, tripID, id uuid.UUID) error

	upserts int
	deletes int
}

func (m *mockStore) ListAll(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error) {
	if m.listAll == nil {
		return []domain.PlanBox{}, nil
	}
	return m.listAll(ctx, tripID)
}

func (m *mockStore) Upsert(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error) {
	m.upserts++
	if m.upsert == nil {
		return box, nil
	}
	return m.upsert(ctx, box)
}

func (m *mockStore) Delete(ctx context.Context, tripID, id uuid.UUID) error {
	m.deletes++
	if m.delete == nil {
		return nil
	}
	return m.delete(ctx, tripID, id)
}

// mockSnapshots is an in-memory SnapshotStore.
type mockSnapshots struct {
	saved   map[string]snapshot.Snapshot
	loadErr error
}

func newMockSnapshots() *mockSnapshots {
	return &mockSnapshots{saved: map[string]snapshot.Snapshot{}}
}

func (m *mockSnapshots) Load(key string) (snapshot.Snapshot, error) {
	if m.loadErr != nil {
		return snapshot.Snapshot{}, m.loadErr
	}
	s, ok := m.saved[key]
	if !ok {
		return snapshot.Snapshot{}, snapshot.ErrNoSnapshot
	}
	return s, nil
}

func (m *mockSnapshots) Save(key string, s snapshot.Snapshot) error {
	m.saved[key] = s
	return nil
}

func tripFixture() domain.Trip {
	return domain.Trip{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Title:     "Kyoto in spring",
		StartDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		Settings:  domain.TripSettings{DisplayStartHour: 8, DisplayEndHour: 22},
		UpdatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func timedBox(trip domain.Trip, day, hh, mm, minutes int) domain.PlanBox {
	return domain.PlanBox{
		ID:              uuid.New(),
		TripID:          trip.ID,
		Day:             day,
		HasTimeSet:      true,
		Start:           domain.TimeOfDay{Hour: hh, Minute: mm},
		DurationMinutes: minutes,
		Category:        domain.CategorySightseeing,
		Title:           "Fushimi Inari",
		CreatedAt:       time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}
