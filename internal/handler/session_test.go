package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/handler"
	"github.com/tabiplan/planner/internal/planner"
	"github.com/tabiplan/planner/internal/schedule"
	"github.com/tabiplan/planner/internal/service"
)

func newSessionHandler(svc handler.SessionServicer) http.Handler {
	return newHTTPHandler(handler.NewServer(nil, nil, nil, svc, nil))
}

func sessionView(trip domain.Trip, boxes ...domain.PlanBox) service.SessionView {
	v := service.SessionView{
		ID:     uuid.New(),
		TripID: trip.ID,
		Source: planner.SourceRemote,
		Policy: planner.KeepDirty,
		State:  planner.StateIdle,
		Layout: planner.DefaultLayout(trip, 15),
		Boxes:  boxes,
	}
	for _, b := range boxes {
		v.Statuses = append(v.Statuses, planner.Status{ID: b.ID, State: planner.Synced})
	}
	return v
}

func TestOpenSession_201(t *testing.T) {
	trip := tripFixture()
	box := boxFixture(trip, 0, 9, 0, 60)
	view := sessionView(trip, box)
	var gotLayout *planner.Layout
	svc := &mockSessionServicer{
		open: func(_ context.Context, actor, tripID uuid.UUID, layout *planner.Layout) (service.SessionView, error) {
			assert.Equal(t, testOwner, actor)
			assert.Equal(t, trip.ID, tripID)
			gotLayout = layout
			return view, nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/trips/"+trip.ID.String()+"/sessions", map[string]any{
		"origin": map[string]any{"x": 48, "y": 32}, "column_width": 180,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, gotLayout)
	assert.Equal(t, planner.Point{X: 48, Y: 32}, gotLayout.Origin)
	assert.Equal(t, 180.0, gotLayout.ColumnWidth)

	resp := decode[handler.Session](t, rec)
	assert.Equal(t, view.ID, resp.ID)
	assert.Equal(t, "remote", resp.Source)
	assert.Equal(t, "keep_dirty", resp.Policy)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, 5, resp.Layout.Days)
	assert.Equal(t, domain.TimeOfDay{Hour: 8}, resp.Layout.WindowStart)
	assert.Equal(t, domain.TimeOfDay{Hour: 22}, resp.Layout.WindowEnd)
	require.Len(t, resp.Statuses, 1)
	assert.Equal(t, "synced", resp.Statuses[0].State)
}

func TestOpenSession_withoutBody(t *testing.T) {
	trip := tripFixture()
	svc := &mockSessionServicer{
		open: func(_ context.Context, _, _ uuid.UUID, layout *planner.Layout) (service.SessionView, error) {
			assert.Nil(t, layout)
			return sessionView(trip), nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/trips/"+trip.ID.String()+"/sessions", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, decode[handler.Session](t, rec).Boxes)
}

func TestOpenSession_503_WhenStoreUnreachable(t *testing.T) {
	svc := &mockSessionServicer{
		open: func(context.Context, uuid.UUID, uuid.UUID, *planner.Layout) (service.SessionView, error) {
			return service.SessionView{}, &domain.PersistenceError{Op: "list plan boxes", Err: errors.New("down")}
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/trips/"+uuid.NewString()+"/sessions", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetSession_404_ForeignSession(t *testing.T) {
	svc := &mockSessionServicer{
		view: func(uuid.UUID, uuid.UUID) (service.SessionView, error) {
			return service.SessionView{}, domain.ErrNotFound
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodGet, "/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session not found", decode[handler.ErrorResponse](t, rec).Error.Message)
}

func TestBeginDrag_cloneFromTemplate(t *testing.T) {
	id := uuid.New()
	var got service.BeginDrag
	svc := &mockSessionServicer{
		begin: func(_ uuid.UUID, sid uuid.UUID, req service.BeginDrag) (*planner.Target, error) {
			assert.Equal(t, id, sid)
			got = req
			return &planner.Target{Day: 1, Start: domain.TimeOfDay{Hour: 9, Minute: 30}}, nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+id.String()+"/drag/begin", map[string]any{
		"category": "food", "position": map[string]any{"x": 200, "y": 36},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.BeginDrag{Category: domain.CategoryFood, Position: planner.Point{X: 200, Y: 36}}, got)
	assert.JSONEq(t, `{"target":{"day":1,"start":"09:30","key":"1-09:30"}}`, rec.Body.String())
}

func TestBeginDrag_409_GestureInProgress(t *testing.T) {
	svc := &mockSessionServicer{
		begin: func(uuid.UUID, uuid.UUID, service.BeginDrag) (*planner.Target, error) {
			return nil, planner.ErrGestureInProgress
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/begin", map[string]any{
		"box_id": uuid.New(), "position": map[string]any{"x": 0, "y": 0},
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "gesture_state", decode[handler.ErrorResponse](t, rec).Error.Code)
}

func TestMoveDrag_outsideGrid(t *testing.T) {
	svc := &mockSessionServicer{
		move: func(uuid.UUID, uuid.UUID, planner.Point) (*planner.Target, error) { return nil, nil },
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/move", map[string]any{
		"position": map[string]any{"x": -10, "y": 5},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"target":null}`, rec.Body.String())
}

func TestDropDrag_created(t *testing.T) {
	trip := tripFixture()
	box := boxFixture(trip, 2, 12, 0, 60)
	svc := &mockSessionServicer{
		drop: func(context.Context, uuid.UUID, uuid.UUID, planner.Point) (planner.DropResult, error) {
			return planner.DropResult{Outcome: planner.OutcomeCreated, Box: box}, nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/drop", map[string]any{
		"position": map[string]any{"x": 330, "y": 200},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.DropResponse](t, rec)
	assert.Equal(t, "created", resp.Outcome)
	require.NotNil(t, resp.Box)
	assert.Equal(t, box.ID, resp.Box.ID)
	assert.Nil(t, resp.Conflict)
}

func TestDropDrag_409_Rejected(t *testing.T) {
	trip := tripFixture()
	suggested := domain.TimeOfDay{Hour: 12}
	conflict := schedule.Detect(
		domain.Placement{Day: 0, Start: domain.TimeOfDay{Hour: 11}, DurationMinutes: 30},
		[]domain.PlanBox{boxFixture(trip, 0, 10, 0, 120)},
		schedule.WindowOf(trip.Settings),
	)
	require.True(t, conflict.Conflict)
	svc := &mockSessionServicer{
		drop: func(context.Context, uuid.UUID, uuid.UUID, planner.Point) (planner.DropResult, error) {
			return planner.DropResult{Outcome: planner.OutcomeRejected, Conflict: &conflict}, nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/drop", map[string]any{
		"position": map[string]any{"x": 10, "y": 80},
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[handler.ConflictResponse](t, rec)
	require.NotNil(t, resp.Conflict.SuggestedStart)
	assert.Equal(t, suggested, *resp.Conflict.SuggestedStart)
}

func TestDropDrag_503_KeepsLocalChange(t *testing.T) {
	trip := tripFixture()
	box := boxFixture(trip, 0, 9, 0, 60)
	svc := &mockSessionServicer{
		drop: func(context.Context, uuid.UUID, uuid.UUID, planner.Point) (planner.DropResult, error) {
			return planner.DropResult{Outcome: planner.OutcomeRelocated, Box: box},
				&domain.PersistenceError{Op: "upsert plan box " + box.ID.String(), Err: errors.New("timeout")}
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/drop", map[string]any{
		"position": map[string]any{"x": 10, "y": 10},
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[handler.DropFailure](t, rec)
	assert.Equal(t, "persistence_error", resp.Error.Code)
	assert.Equal(t, "relocated", resp.Result.Outcome)
	require.NotNil(t, resp.Result.Box)
	assert.Equal(t, box.ID, resp.Result.Box.ID)
}

func TestDropDrag_503_RolledBackCloneHasNoBox(t *testing.T) {
	svc := &mockSessionServicer{
		drop: func(context.Context, uuid.UUID, uuid.UUID, planner.Point) (planner.DropResult, error) {
			return planner.DropResult{Outcome: planner.OutcomeCreated},
				&domain.PersistenceError{Op: "insert plan box", Err: errors.New("timeout")}
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/drop", map[string]any{
		"position": map[string]any{"x": 10, "y": 10},
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[handler.DropFailure](t, rec)
	assert.Equal(t, "persistence_error", resp.Error.Code)
	assert.Equal(t, "created", resp.Result.Outcome)
	assert.Nil(t, resp.Result.Box)
	assert.NotContains(t, rec.Body.String(), `"box"`)
}

func TestCancelDrag(t *testing.T) {
	svc := &mockSessionServicer{
		cancel: func(uuid.UUID, uuid.UUID) (planner.DropResult, error) {
			return planner.DropResult{Outcome: planner.OutcomeCancelled}, nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outcome":"cancelled"}`, rec.Body.String())
}

func TestCancelDrag_409_NoGesture(t *testing.T) {
	svc := &mockSessionServicer{
		cancel: func(uuid.UUID, uuid.UUID) (planner.DropResult, error) {
			return planner.DropResult{}, planner.ErrNoGesture
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/drag/cancel", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetrySession(t *testing.T) {
	trip := tripFixture()
	box := boxFixture(trip, 0, 9, 0, 60)

	t.Run("all confirmed", func(t *testing.T) {
		svc := &mockSessionServicer{
			retry: func(context.Context, uuid.UUID, uuid.UUID) (service.SessionView, error) {
				return sessionView(trip, box), nil
			},
		}

		rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/retry", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "synced", decode[handler.Session](t, rec).Statuses[0].State)
	})

	t.Run("still failing", func(t *testing.T) {
		view := sessionView(trip, box)
		view.Statuses[0].State = planner.Failed
		svc := &mockSessionServicer{
			retry: func(context.Context, uuid.UUID, uuid.UUID) (service.SessionView, error) {
				return view, &domain.PersistenceError{Op: "upsert plan box", Err: errors.New("down")}
			},
		}

		rec := serve(t, newSessionHandler(svc), http.MethodPost, "/sessions/"+uuid.NewString()+"/retry", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[handler.RetryFailure](t, rec)
		assert.Equal(t, "failed", resp.Session.Statuses[0].State)
	})
}

func TestCloseSession_204(t *testing.T) {
	id := uuid.New()
	closed := false
	svc := &mockSessionServicer{
		close: func(actor, got uuid.UUID) error {
			closed = actor == testOwner && got == id
			return nil
		},
	}

	rec := serve(t, newSessionHandler(svc), http.MethodDelete, "/sessions/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, closed)
}
