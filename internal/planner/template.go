package planner

import (
	"fmt"

	"github.com/tabiplan/planner/internal/domain"
)

// DefaultTemplateMinutes is the duration of a box cloned from the sidebar.
const DefaultTemplateMinutes = 60

var templateTitles = map[domain.Category]string{
	domain.CategoryFood:          "Meal",
	domain.CategoryTransport:     "Transfer",
	domain.CategoryActivity:      "Activity",
	domain.CategorySightseeing:   "Sightseeing",
	domain.CategoryShopping:      "Shopping",
	domain.CategoryAccommodation: "Check-in",
}

// Template returns the sidebar item for category: an unsaved, untimed box
// the drag session clones on drop.
func Template(category domain.Category) (domain.PlanBox, error) {
	title, ok := templateTitles[category]
	if !ok {
		return domain.PlanBox{}, fmt.Errorf("%w: category %q is not one of %v", domain.ErrValidation, category, domain.Categories)
	}
	return domain.PlanBox{
		Category:        category,
		Title:           title,
		DurationMinutes: DefaultTemplateMinutes,
	}, nil
}
