package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/tabiplan/planner/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_id", "trip_title", "destination", "trip_start_date", "trip_end_date",
	"day", "date", "start", "end", "category", "title", "location", "memo",
	"cost", "currency",
}

// ExportRow is one line of the JSON export. Box fields are omitted for a
// trip without plan boxes.
type ExportRow struct {
	TripID        string `json:"trip_id"`
	TripTitle     string `json:"trip_title"`
	Destination   string `json:"destination,omitempty"`
	TripStartDate string `json:"trip_start_date"`
	TripEndDate   string `json:"trip_end_date"`
	Day           *int   `json:"day,omitempty"`
	Date          string `json:"date,omitempty"`
	Start         string `json:"start,omitempty"`
	End           string `json:"end,omitempty"`
	Category      string `json:"category,omitempty"`
	Title         string `json:"title,omitempty"`
	Location      string `json:"location,omitempty"`
	Memo          string `json:"memo,omitempty"`
	Cost          *int64 `json:"cost,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// GetExport handles GET /export: every trip of the actor as a flat itinerary.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := actor(w, r)
	if !ok {
		return
	}
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	rows, err := s.export.Export(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeExport(w, format, "itinerary.csv", rows)
}

// ExportTrip handles GET /trips/{tripId}/export.
func (s *Server) ExportTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.loadTrip(w, r, false)
	if !ok {
		return
	}
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	rows, err := s.export.ExportTrip(r.Context(), trip)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	writeExport(w, format, "trip-"+trip.ID.String()+".csv", rows)
}

func exportFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	var format *string
	if !queryParam(w, r, "format", &format) {
		return "", false
	}
	if format == nil || *format == "json" {
		return "json", true
	}
	if *format == "csv" {
		return "csv", true
	}
	writeJSON(w, http.StatusUnprocessableEntity, requestBody("format must be json or csv"))
	return "", false
}

func writeExport(w http.ResponseWriter, format, filename string, rows []domain.ExportRow) {
	if format == "csv" {
		buf := buildCSV(rows)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, domainRowToResponse(r))
	}
	writeJSON(w, http.StatusOK, out)
}

// buildCSV encodes rows as CSV with csvHeaders as the first line.
func buildCSV(rows []domain.ExportRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(domainRowToCSVRecord(r))
	}
	w.Flush()
	return &buf
}

// domainRowToResponse leaves box fields empty when the row carries no box.
func domainRowToResponse(r domain.ExportRow) ExportRow {
	row := ExportRow{
		TripID:        r.TripID,
		TripTitle:     r.TripTitle,
		Destination:   r.Destination,
		TripStartDate: r.TripStartDate,
		TripEndDate:   r.TripEndDate,
	}
	if r.Title == "" {
		return row
	}
	day := r.Day
	row.Day = &day
	row.Date = r.Date
	row.Start = r.Start
	row.End = r.End
	row.Category = r.Category
	row.Title = r.Title
	row.Location = r.Location
	row.Memo = r.Memo
	row.Cost = r.Cost
	row.Currency = r.Currency
	return row
}

// domainRowToCSVRecord encodes a row as a flat string slice. A trip without
// boxes leaves every box column empty.
func domainRowToCSVRecord(r domain.ExportRow) []string {
	record := []string{r.TripID, r.TripTitle, r.Destination, r.TripStartDate, r.TripEndDate}
	if r.Title == "" {
		return append(record, make([]string, len(csvHeaders)-len(record))...)
	}
	cost := ""
	if r.Cost != nil {
		cost = strconv.FormatInt(*r.Cost, 10)
	}
	return append(record,
		strconv.Itoa(r.Day), r.Date, r.Start, r.End,
		r.Category, r.Title, r.Location, r.Memo,
		cost, r.Currency,
	)
}
