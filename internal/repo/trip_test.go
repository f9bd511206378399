package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/repo"
	"github.com/tabiplan/planner/testutil"
)

var ownerID = uuid.MustParse("9b2f7c1e-4d3a-4e8b-9c60-0f1d2e3a4b5c")

// tripFixture returns a domain.Trip with sensible defaults for use in tests.
func tripFixture() domain.Trip {
	return domain.Trip{
		OwnerID:     ownerID,
		Title:       "Hokkaido ski week",
		StartDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		Destination: "Niseko",
		Domestic:    true,
		Settings: domain.TripSettings{
			DisplayStartHour: 7,
			DisplayEndHour:   23,
			Currency:         "JPY",
			Timezone:         "Asia/Tokyo",
			Visibility:       domain.VisibilityShared,
		},
	}
}

func TestTripRepo_Create(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ctx := context.Background()

	input := tripFixture()
	got, err := r.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, ownerID, got.OwnerID)
	assert.Equal(t, input.Title, got.Title)
	assert.True(t, got.StartDate.Equal(input.StartDate), "StartDate mismatch")
	assert.True(t, got.EndDate.Equal(input.EndDate), "EndDate mismatch")
	assert.Equal(t, input.Settings, got.Settings, "settings survive the jsonb round trip")
	assert.Equal(t, 5, got.DayCount())
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
}

func TestTripRepo_GetByID_NotFound(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_ListIsScopedToOwner(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ctx := context.Background()

	early := tripFixture()
	early.Title = "Early"
	late := tripFixture()
	late.Title = "Late"
	late.StartDate = early.StartDate.AddDate(0, 1, 0)
	late.EndDate = early.EndDate.AddDate(0, 1, 0)
	other := tripFixture()
	other.OwnerID = uuid.New()

	for _, trip := range []domain.Trip{early, late, other} {
		_, err := r.Create(ctx, trip)
		require.NoError(t, err)
	}

	trips, err := r.List(ctx, ownerID)

	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, "Late", trips[0].Title, "ordered by start_date DESC")
	assert.Equal(t, "Early", trips[1].Title)
}

func TestTripRepo_ListPaged(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ctx := context.Background()
	for i := range 3 {
		trip := tripFixture()
		trip.StartDate = trip.StartDate.AddDate(0, 0, i)
		trip.EndDate = trip.EndDate.AddDate(0, 0, i)
		_, err := r.Create(ctx, trip)
		require.NoError(t, err)
	}

	page, total, err := r.ListPaged(ctx, ownerID, domain.PaginationParams{Page: 2, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.True(t, page[0].StartDate.Equal(tripFixture().StartDate), "last page holds the earliest trip")
}

func TestTripRepo_Update(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ctx := context.Background()
	created, err := r.Create(ctx, tripFixture())
	require.NoError(t, err)

	created.Title = "Hokkaido, extended"
	created.EndDate = created.EndDate.AddDate(0, 0, 2)
	created.Settings.Visibility = domain.VisibilityPublic

	updated, err := r.Update(ctx, created)

	require.NoError(t, err)
	assert.Equal(t, "Hokkaido, extended", updated.Title)
	assert.Equal(t, 7, updated.DayCount())
	assert.Equal(t, domain.VisibilityPublic, updated.Settings.Visibility)
}

func TestTripRepo_Update_NotFound(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ghost := tripFixture()
	ghost.ID = uuid.New()

	_, err := r.Update(context.Background(), ghost)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_Delete(t *testing.T) {
	r := repo.NewTripRepo(testutil.NewTx(t))
	ctx := context.Background()
	created, err := r.Create(ctx, tripFixture())
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, created.ID))

	_, err = r.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "trip should be gone after delete")
	assert.ErrorIs(t, r.Delete(ctx, created.ID), domain.ErrNotFound)
}
