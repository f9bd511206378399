// Package snapshot persists the planner's last-known client state: the trip
// title and its plan box data, keyed per owner and trip. The planner reads a
// snapshot back at session start and falls back to the database whenever the
// snapshot is absent, malformed, or stale.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabiplan/planner/internal/domain"
)

// ErrNoSnapshot is returned by Load when nothing has been saved under a key.
var ErrNoSnapshot = errors.New("snapshot: not found")

// ErrMalformed is returned when a stored snapshot cannot be decoded into
// typed plan boxes.
var ErrMalformed = errors.New("snapshot: malformed")

// Snapshot is the serialized mapping written after every confirmed change.
// PlanBoxData is kept raw so that decoding, and its failure, happens in Boxes.
type Snapshot struct {
	TripID      uuid.UUID       `json:"tripId"`
	TripTitle   string          `json:"tripTitle"`
	PlanBoxData json.RawMessage `json:"planboxData"`
	SavedAt     time.Time       `json:"savedAt"`
}

// Key returns the storage key for one owner's view of one trip.
func Key(ownerID, tripID uuid.UUID) string {
	return ownerID.String() + "_" + tripID.String()
}

// record is the wire shape of a plan box inside planboxData.
type record struct {
	ID            uuid.UUID              `json:"id"`
	TripID        uuid.UUID              `json:"tripId"`
	Day           int                    `json:"day"`
	HasTimeSet    bool                   `json:"hasTimeSet"`
	StartHour     int                    `json:"startHour"`
	StartMinute   int                    `json:"startMinute"`
	Duration      int                    `json:"duration"`
	Category      string                 `json:"category"`
	Title         string                 `json:"title"`
	Memo          string                 `json:"memo,omitempty"`
	Location      string                 `json:"location,omitempty"`
	Cost          *int64                 `json:"cost,omitempty"`
	Currency      string                 `json:"currency,omitempty"`
	Position      *domain.CanvasPosition `json:"position,omitempty"`
	AllowOverflow bool                   `json:"allowOverflow,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// New builds a snapshot of trip and its boxes stamped with savedAt.
func New(trip domain.Trip, boxes []domain.PlanBox, savedAt time.Time) (Snapshot, error) {
	records := make([]record, len(boxes))
	for i, b := range boxes {
		records[i] = record{
			ID:            b.ID,
			TripID:        b.TripID,
			Day:           b.Day,
			HasTimeSet:    b.HasTimeSet,
			StartHour:     b.Start.Hour,
			StartMinute:   b.Start.Minute,
			Duration:      b.DurationMinutes,
			Category:      string(b.Category),
			Title:         b.Title,
			Memo:          b.Memo,
			Location:      b.Location,
			Cost:          b.Cost,
			Currency:      b.Currency,
			Position:      b.Position,
			AllowOverflow: b.AllowOverflow,
			CreatedAt:     b.CreatedAt,
			UpdatedAt:     b.UpdatedAt,
		}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot.New: %w", err)
	}
	return Snapshot{TripID: trip.ID, TripTitle: trip.Title, PlanBoxData: raw, SavedAt: savedAt}, nil
}

// Boxes decodes PlanBoxData into typed plan boxes.
//
// Browsers historically stored planboxData as a JSON-encoded string rather
// than an array, so both forms are accepted. Records with an unknown category
// or without an ID make the whole snapshot malformed.
func (s Snapshot) Boxes() ([]domain.PlanBox, error) {
	data := bytes.TrimSpace(s.PlanBoxData)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []domain.PlanBox{}, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: planboxData: %v", ErrMalformed, err)
		}
		data = []byte(inner)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: planboxData: %v", ErrMalformed, err)
	}

	boxes := make([]domain.PlanBox, 0, len(records))
	for i, r := range records {
		category, ok := domain.ParseCategory(r.Category)
		if !ok {
			return nil, fmt.Errorf("%w: planboxData[%d]: unknown category %q", ErrMalformed, i, r.Category)
		}
		if r.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: planboxData[%d]: missing id", ErrMalformed, i)
		}
		boxes = append(boxes, domain.PlanBox{
			ID:              r.ID,
			TripID:          r.TripID,
			Day:             r.Day,
			HasTimeSet:      r.HasTimeSet,
			Start:           domain.TimeOfDay{Hour: r.StartHour, Minute: r.StartMinute},
			DurationMinutes: r.Duration,
			Category:        category,
			Title:           r.Title,
			Memo:            r.Memo,
			Location:        r.Location,
			Cost:            r.Cost,
			Currency:        r.Currency,
			Position:        r.Position,
			AllowOverflow:   r.AllowOverflow,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	return boxes, nil
}
