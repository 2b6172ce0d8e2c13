package entities

// PriceLevel is the normalized price preference extracted from a query.
type PriceLevel string

const (
	PriceCheap     PriceLevel = "cheap"
	PriceModerate  PriceLevel = "moderate"
	PriceExpensive PriceLevel = "expensive"
)

// LocationIntent describes how the user qualified the location.
type LocationIntent string

const (
	LocationIntentClosest LocationIntent = "closest"
	LocationIntentNearby  LocationIntent = "nearby"
	LocationIntentInArea  LocationIntent = "in_area"
)

// ParsedIntent is the structured form of a free-text query.
// FoodQuery is never null; Exclusions is never nil.
type ParsedIntent struct {
	FoodQuery          string          `json:"food_query"`
	LocationName       *string         `json:"location_name"`
	UseCurrentLocation bool            `json:"use_current_location"`
	LocationIntent     *LocationIntent `json:"location_intent"`
	Cuisine            *string         `json:"cuisine"`
	Price              *PriceLevel     `json:"price"`
	Exclusions         []string        `json:"exclusions"`
}

// CuisineValue returns the cuisine filter or an empty string.
func (p *ParsedIntent) CuisineValue() string {
	if p == nil || p.Cuisine == nil {
		return ""
	}
	return *p.Cuisine
}

// PriceValue returns the price filter or an empty string.
func (p *ParsedIntent) PriceValue() string {
	if p == nil || p.Price == nil {
		return ""
	}
	return string(*p.Price)
}
