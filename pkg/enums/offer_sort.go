package enums

import "fmt"

// OfferSortKey names the columns buyers can sort an offer listing by.
type OfferSortKey string

const (
	OfferSortPrice        OfferSortKey = "price"
	OfferSortPricePerUnit OfferSortKey = "price_per_unit"
	OfferSortQuantity     OfferSortKey = "available_quantity"
	OfferSortDeliveryDays OfferSortKey = "delivery_time_days"
	OfferSortSellerName   OfferSortKey = "seller_name"
)

var validOfferSortKeys = []OfferSortKey{
	OfferSortPrice,
	OfferSortPricePerUnit,
	OfferSortQuantity,
	OfferSortDeliveryDays,
	OfferSortSellerName,
}

// String implements fmt.Stringer.
func (o OfferSortKey) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferSortKey.
func (o OfferSortKey) IsValid() bool {
	for _, candidate := range validOfferSortKeys {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferSortKey converts raw input into an OfferSortKey.
func ParseOfferSortKey(value string) (OfferSortKey, error) {
	for _, candidate := range validOfferSortKeys {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer sort key %q", value)
}

// SortDirection orders a listing ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// IsValid reports whether the value is a known SortDirection.
func (s SortDirection) IsValid() bool {
	return s == SortAsc || s == SortDesc
}

// ParseSortDirection converts raw input into a SortDirection, defaulting
// to ascending when empty.
func ParseSortDirection(value string) (SortDirection, error) {
	switch SortDirection(value) {
	case "":
		return SortAsc, nil
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", value)
	}
}
