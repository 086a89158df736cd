package enums

import "fmt"

// RequestCategory classifies what kind of goods a bulk order request covers.
type RequestCategory string

const (
	RequestCategoryElectronics  RequestCategory = "electronics"
	RequestCategoryApparel      RequestCategory = "apparel"
	RequestCategoryFoodBeverage RequestCategory = "food_beverage"
	RequestCategoryIndustrial   RequestCategory = "industrial"
	RequestCategoryHomeGarden   RequestCategory = "home_garden"
	RequestCategoryHealthBeauty RequestCategory = "health_beauty"
	RequestCategoryOther        RequestCategory = "other"
)

var validRequestCategories = []RequestCategory{
	RequestCategoryElectronics,
	RequestCategoryApparel,
	RequestCategoryFoodBeverage,
	RequestCategoryIndustrial,
	RequestCategoryHomeGarden,
	RequestCategoryHealthBeauty,
	RequestCategoryOther,
}

// String implements fmt.Stringer.
func (r RequestCategory) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestCategory.
func (r RequestCategory) IsValid() bool {
	for _, candidate := range validRequestCategories {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRequestCategory converts raw input into a RequestCategory.
func ParseRequestCategory(value string) (RequestCategory, error) {
	for _, candidate := range validRequestCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request category %q", value)
}
