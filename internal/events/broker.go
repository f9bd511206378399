// Package events fans plan box changes out to browser tabs over
// Server-Sent Events.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types published by the services.
const (
	TypePlanBoxSaved   = "planbox.saved"
	TypePlanBoxDeleted = "planbox.deleted"
	TypeTripUpdated    = "trip.updated"
	TypeTripDeleted    = "trip.deleted"
)

// Event is one change notification. Only subscribers of OwnerID receive it.
type Event struct {
	Type    string
	OwnerID uuid.UUID
	TripID  uuid.UUID
	Data    any
}

// Filter selects the events a subscriber receives. A nil TripID matches
// every trip of the owner.
type Filter struct {
	OwnerID uuid.UUID
	TripID  uuid.UUID
}

func (f Filter) matches(e Event) bool {
	if e.OwnerID != f.OwnerID {
		return false
	}
	return f.TripID == uuid.Nil || f.TripID == e.TripID
}

type subscription struct {
	ch     chan []byte
	filter Filter
}

// Broker manages SSE client connections and broadcasts events.
//
// A single goroutine owns the client set and the per-trip throttle
// timestamps; public methods talk to it over channels.
type Broker struct {
	touchMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. Every plan box event is followed by a
// trip.updated event, at most once per touchThrottle for each trip.
func NewBroker(touchThrottle time.Duration) *Broker {
	if touchThrottle <= 0 {
		touchThrottle = 2 * time.Second
	}

	b := &Broker{
		touchMin:      touchThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]Filter)
	lastTouch := make(map[uuid.UUID]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, f := range clients {
			if !f.matches(event) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.filter

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if event.Type != TypePlanBoxSaved && event.Type != TypePlanBoxDeleted {
				continue
			}
			now := time.Now()
			if now.Sub(lastTouch[event.TripID]) >= b.touchMin {
				lastTouch[event.TripID] = now
				broadcast(Event{
					Type:    TypeTripUpdated,
					OwnerID: event.OwnerID,
					TripID:  event.TripID,
					Data:    map[string]string{"trip_id": event.TripID.String()},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe(f Filter) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, filter: f}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues event for every matching client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Stream writes events matching f to w until the request ends or the
// broker closes.
func (b *Broker) Stream(w http.ResponseWriter, r *http.Request, f Filter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(f)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
