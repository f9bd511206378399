package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tabiplan/planner/internal/domain"
)

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// PlanBoxRepo is the persistence collaborator for plan boxes.
type PlanBoxRepo interface {
	// ListAll returns every plan box of a trip, newest first (created_at DESC).
	ListAll(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error)

	// Get returns one plan box of a trip.
	// Returns domain.ErrNotFound if the box does not exist on that trip.
	Get(ctx context.Context, tripID, id uuid.UUID) (domain.PlanBox, error)

	// Upsert inserts the box or replaces the stored box with the same id and
	// returns the stored record. Returns domain.ErrNotFound when the trip does
	// not exist or the id already belongs to another trip.
	Upsert(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error)

	// Delete removes a plan box. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, tripID, id uuid.UUID) error

	// Ping runs a trivial query against plan_boxes to prove the store is reachable
	// and migrated.
	Ping(ctx context.Context) error
}

type pgPlanBoxRepo struct {
	db db
}

// NewPlanBoxRepo constructs a PlanBoxRepo backed by the provided db connection.
func NewPlanBoxRepo(db db) PlanBoxRepo {
	return &pgPlanBoxRepo{db: db}
}

const planBoxColumns = `id, trip_id, day_index, has_time_set, start_hour, start_minute, duration_minutes,
	category, title, memo, location, cost, currency, position, allow_overflow, created_at, updated_at`

func (r *pgPlanBoxRepo) ListAll(ctx context.Context, tripID uuid.UUID) ([]domain.PlanBox, error) {
	const q = `
		SELECT ` + planBoxColumns + `
		FROM plan_boxes
		WHERE trip_id = @trip_id
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.PlanBoxRepo.ListAll: %w", err)
	}
	defer rows.Close()

	boxes := []domain.PlanBox{}
	for rows.Next() {
		b, err := scanPlanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.PlanBoxRepo.ListAll: scan: %w", err)
		}
		boxes = append(boxes, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PlanBoxRepo.ListAll: rows: %w", err)
	}
	return boxes, nil
}

func (r *pgPlanBoxRepo) Get(ctx context.Context, tripID, id uuid.UUID) (domain.PlanBox, error) {
	const q = `SELECT ` + planBoxColumns + ` FROM plan_boxes WHERE trip_id = @trip_id AND id = @id`

	b, err := scanPlanBox(r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "id": id}))
	if err != nil {
		return domain.PlanBox{}, fmt.Errorf("repo.PlanBoxRepo.Get: %w", err)
	}
	return b, nil
}

// Upsert relies on ON CONFLICT (id); the WHERE on the update arm keeps a box
// from being moved to another trip, in which case no row is returned.
func (r *pgPlanBoxRepo) Upsert(ctx context.Context, box domain.PlanBox) (domain.PlanBox, error) {
	const q = `
		INSERT INTO plan_boxes (id, trip_id, day_index, has_time_set, start_hour, start_minute,
			duration_minutes, category, title, memo, location, cost, currency, position,
			allow_overflow, created_at, updated_at)
		VALUES (@id, @trip_id, @day_index, @has_time_set, @start_hour, @start_minute,
			@duration_minutes, @category, @title, @memo, @location, @cost, @currency, @position,
			@allow_overflow, COALESCE(@created_at, now()), now())
		ON CONFLICT (id) DO UPDATE
		SET day_index        = EXCLUDED.day_index,
		    has_time_set     = EXCLUDED.has_time_set,
		    start_hour       = EXCLUDED.start_hour,
		    start_minute     = EXCLUDED.start_minute,
		    duration_minutes = EXCLUDED.duration_minutes,
		    category         = EXCLUDED.category,
		    title            = EXCLUDED.title,
		    memo             = EXCLUDED.memo,
		    location         = EXCLUDED.location,
		    cost             = EXCLUDED.cost,
		    currency         = EXCLUDED.currency,
		    position         = EXCLUDED.position,
		    allow_overflow   = EXCLUDED.allow_overflow,
		    updated_at       = now()
		WHERE plan_boxes.trip_id = EXCLUDED.trip_id
		RETURNING ` + planBoxColumns

	if box.ID == uuid.Nil {
		box.ID = uuid.New()
	}
	var createdAt *time.Time
	if !box.CreatedAt.IsZero() {
		createdAt = &box.CreatedAt
	}
	args := pgx.NamedArgs{
		"id":               box.ID,
		"trip_id":          box.TripID,
		"day_index":        box.Day,
		"has_time_set":     box.HasTimeSet,
		"start_hour":       box.Start.Hour,
		"start_minute":     box.Start.Minute,
		"duration_minutes": box.DurationMinutes,
		"category":         string(box.Category),
		"title":            box.Title,
		"memo":             box.Memo,
		"location":         box.Location,
		"cost":             box.Cost, // nil becomes NULL
		"currency":         box.Currency,
		"position":         box.Position, // encoded as jsonb, nil becomes NULL
		"allow_overflow":   box.AllowOverflow,
		"created_at":       createdAt,
	}

	result, err := scanPlanBox(r.db.QueryRow(ctx, q, args))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			err = domain.ErrNotFound
		}
		return domain.PlanBox{}, fmt.Errorf("repo.PlanBoxRepo.Upsert: %w", err)
	}
	return result, nil
}

func (r *pgPlanBoxRepo) Delete(ctx context.Context, tripID, id uuid.UUID) error {
	const q = `DELETE FROM plan_boxes WHERE trip_id = @trip_id AND id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"trip_id": tripID, "id": id})
	if err != nil {
		return fmt.Errorf("repo.PlanBoxRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PlanBoxRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgPlanBoxRepo) Ping(ctx context.Context) error {
	const q = `SELECT EXISTS (SELECT 1 FROM plan_boxes LIMIT 1)`

	var exists bool
	if err := r.db.QueryRow(ctx, q).Scan(&exists); err != nil {
		return fmt.Errorf("repo.PlanBoxRepo.Ping: %w", err)
	}
	return nil
}

// scanPlanBox maps a row into a domain.PlanBox. Unknown categories and
// undecodable positions are rejected here so loosely typed rows never reach
// the scheduling code.
func scanPlanBox(s scanner) (domain.PlanBox, error) {
	var (
		b            domain.PlanBox
		id, tripID   pgtype.UUID
		category     string
		cost         pgtype.Int8
		position     []byte
		hour, minute int16
	)

	err := s.Scan(&id, &tripID, &b.Day, &b.HasTimeSet, &hour, &minute, &b.DurationMinutes,
		&category, &b.Title, &b.Memo, &b.Location, &cost, &b.Currency, &position,
		&b.AllowOverflow, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlanBox{}, domain.ErrNotFound
		}
		return domain.PlanBox{}, err
	}

	b.ID = uuid.UUID(id.Bytes)
	b.TripID = uuid.UUID(tripID.Bytes)
	b.Start = domain.TimeOfDay{Hour: int(hour), Minute: int(minute)}

	c, ok := domain.ParseCategory(category)
	if !ok {
		return domain.PlanBox{}, fmt.Errorf("plan box %s: unknown category %q", b.ID, category)
	}
	b.Category = c

	if cost.Valid {
		v := cost.Int64
		b.Cost = &v
	}
	if len(position) > 0 {
		var pos domain.CanvasPosition
		if err := json.Unmarshal(position, &pos); err != nil {
			return domain.PlanBox{}, fmt.Errorf("plan box %s: decode position: %w", b.ID, err)
		}
		b.Position = &pos
	}
	return b, nil
}
