package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = uuid.MustParse("1f4e2b3c-0000-4000-8000-000000000001")
	trip  = uuid.MustParse("1f4e2b3c-0000-4000-8000-0000000000aa")
)

func drain(ch chan []byte) []string {
	var msgs []string
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, string(msg))
		default:
			return msgs
		}
	}
}

func TestBroker_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	require.Zero(t, b.ClientCount())

	ch := b.Subscribe(Filter{OwnerID: owner})
	assert.Equal(t, 1, b.ClientCount())

	b.Unsubscribe(ch)
	assert.Zero(t, b.ClientCount())
}

func TestBroker_PublishDelivery(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(Filter{OwnerID: owner})
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeTripDeleted, OwnerID: owner, TripID: trip, Data: map[string]string{"id": "x"}})

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), "event: trip.deleted")
		assert.Contains(t, string(msg), `"id":"x"`)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestBroker_FiltersByOwnerAndTrip(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	mine := b.Subscribe(Filter{OwnerID: owner, TripID: trip})
	defer b.Unsubscribe(mine)
	stranger := b.Subscribe(Filter{OwnerID: uuid.New()})
	defer b.Unsubscribe(stranger)

	b.Publish(Event{Type: TypeTripDeleted, OwnerID: owner, TripID: uuid.New(), Data: 1})
	b.Publish(Event{Type: TypeTripDeleted, OwnerID: owner, TripID: trip, Data: 2})
	time.Sleep(50 * time.Millisecond)

	got := drain(mine)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "data: 2")
	assert.Empty(t, drain(stranger))
}

func TestBroker_TripUpdatedIsThrottled(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(Filter{OwnerID: owner})
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypePlanBoxSaved, OwnerID: owner, TripID: trip, Data: "a"})
	b.Publish(Event{Type: TypePlanBoxDeleted, OwnerID: owner, TripID: trip, Data: "b"})
	time.Sleep(50 * time.Millisecond)

	touched, boxEvents := 0, 0
	for _, msg := range drain(ch) {
		if strings.Contains(msg, "event: trip.updated") {
			touched++
		} else {
			boxEvents++
		}
	}
	assert.Equal(t, 2, boxEvents)
	assert.Equal(t, 1, touched, "throttled per trip")
}

func TestBroker_Stream(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.Stream(w, req, Filter{OwnerID: owner})
		close(done)
	}()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(Event{Type: TypeTripDeleted, OwnerID: owner, TripID: trip, Data: map[string]string{}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: trip.deleted")
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroker_PublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe(Filter{OwnerID: owner})
	defer b.Unsubscribe(ch)

	for range 70 {
		b.Publish(Event{Type: TypeTripDeleted, OwnerID: owner, Data: "x"})
	}
}

func TestBroker_CloseClosesSubscribers(t *testing.T) {
	b := NewBroker(time.Hour)
	ch := b.Subscribe(Filter{OwnerID: owner})

	b.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscriber channel closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Zero(t, b.ClientCount())
	b.Publish(Event{Type: TypeTripDeleted})
}
