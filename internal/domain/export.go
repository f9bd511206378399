package domain

// ExportRow is a single row in the itinerary export.
// It is a flat, denormalized view: one row per plan box, with trip fields
// repeated for every box on that trip. Trips with no plan boxes yield one row
// with zero values for all box fields.
type ExportRow struct {
	// Trip fields, repeated for every plan box on the trip.
	TripID        string
	TripTitle     string
	Destination   string
	TripStartDate string // "2006-01-02" formatted date
	TripEndDate   string

	// Plan box fields, zero values when the trip has no boxes.
	Day      int
	Date     string // calendar date of Day, "2006-01-02"
	Start    string // "HH:MM", empty when no time is set
	End      string // "HH:MM", with a "+1" suffix when it falls on the next day
	Category string
	Title    string
	Location string
	Memo     string
	Cost     *int64
	Currency string
}
