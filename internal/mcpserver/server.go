// Package mcpserver exposes read-only planner tools over MCP (Model Context
// Protocol) on stdio, so assistants can inspect a trip's schedule.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tabiplan/planner/internal/domain"
)

// Trips is the trip lookup the tools need. *service.TripService satisfies it.
type Trips interface {
	GetByID(ctx context.Context, actor, id uuid.UUID) (domain.Trip, error)
	List(ctx context.Context, actor uuid.UUID) ([]domain.Trip, error)
}

// Boxes is the plan box access the tools need. *service.PlanBoxService satisfies it.
type Boxes interface {
	List(ctx context.Context, trip domain.Trip) ([]domain.PlanBox, error)
	Slots(ctx context.Context, trip domain.Trip, day int) ([]domain.TimeSlot, error)
	CheckConflict(ctx context.Context, trip domain.Trip, p domain.Placement) (domain.ConflictResult, error)
}

// Server wraps the MCP server with the planner tools. Every call acts as owner.
type Server struct {
	mcp   *server.MCPServer
	trips Trips
	boxes Boxes
	owner uuid.UUID
}

// New creates an MCP server with all planner tools registered.
func New(trips Trips, boxes Boxes, owner uuid.UUID, version string) *Server {
	s := &Server{trips: trips, boxes: boxes, owner: owner}

	s.mcp = server.NewMCPServer(
		"Trip Planner",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_trips",
		mcp.WithDescription("List the trips of the configured owner with their date range and day count."),
	), s.listTrips)

	s.mcp.AddTool(mcp.NewTool("list_plan_boxes",
		mcp.WithDescription("List every plan box of a trip, newest first."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip UUID")),
	), s.listPlanBoxes)

	s.mcp.AddTool(mcp.NewTool("check_conflict",
		mcp.WithDescription("Check whether a time range overlaps plan boxes on a trip day. "+
			"On conflict the result lists the overlapping boxes and the next start where the range fits."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip UUID")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("0-based day offset from the trip start")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start time as HH:MM")),
		mcp.WithNumber("duration_minutes", mcp.Required(), mcp.Description("Length in minutes, greater than zero")),
		mcp.WithString("exclude_id", mcp.Description("Plan box UUID to ignore, e.g. the box being moved")),
	), s.checkConflict)

	s.mcp.AddTool(mcp.NewTool("day_slots",
		mcp.WithDescription("List the time slots of one trip day with their occupancy."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip UUID")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("0-based day offset from the trip start")),
	), s.daySlots)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type tripSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	DayCount  int       `json:"day_count"`
}

func (s *Server) listTrips(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trips, err := s.trips.List(ctx, s.owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]tripSummary, len(trips))
	for i, t := range trips {
		out[i] = tripSummary{
			ID:        t.ID,
			Title:     t.Title,
			StartDate: t.StartDate.Format("2006-01-02"),
			EndDate:   t.EndDate.Format("2006-01-02"),
			DayCount:  t.DayCount(),
		}
	}
	return jsonResult(out)
}

func (s *Server) listPlanBoxes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trip, err := s.trip(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	boxes, err := s.boxes.List(ctx, trip)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(boxes)
}

func (s *Server) checkConflict(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trip, err := s.trip(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := req.RequireInt("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawStart, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := domain.ParseTimeOfDay(rawStart)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration, err := req.RequireInt("duration_minutes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := domain.Placement{Day: day, Start: start, DurationMinutes: duration}
	if raw := req.GetString("exclude_id", ""); raw != "" {
		if p.ExcludeID, err = uuid.Parse(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid exclude_id %q", raw)), nil
		}
	}

	result, err := s.boxes.CheckConflict(ctx, trip, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) daySlots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trip, err := s.trip(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := req.RequireInt("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slots, err := s.boxes.Slots(ctx, trip, day)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(slots)
}

func (s *Server) trip(ctx context.Context, req mcp.CallToolRequest) (domain.Trip, error) {
	raw, err := req.RequireString("trip_id")
	if err != nil {
		return domain.Trip{}, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("invalid trip_id %q", raw)
	}
	trip, err := s.trips.GetByID(ctx, s.owner, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Trip{}, fmt.Errorf("trip %s not found", id)
	}
	return trip, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
