package domain

// Category is the closed set of plan box kinds the planner sidebar offers
// as drag templates.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryActivity      Category = "activity"
	CategorySightseeing   Category = "sightseeing"
	CategoryShopping      Category = "shopping"
	CategoryAccommodation Category = "accommodation"
)

// Categories lists every valid category in sidebar order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryActivity,
	CategorySightseeing,
	CategoryShopping,
	CategoryAccommodation,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a raw string into a Category.
// The boolean is false for anything outside the closed set.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}
