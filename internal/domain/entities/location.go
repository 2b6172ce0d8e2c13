package entities

// Geocode sources
const (
	GeocodeSourceOneMap   = "onemap"
	GeocodeSourceFallback = "fallback"
	CenterSourceUser      = "user"
)

// Coordinates represents a point on the globe in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult is produced by exactly one of the external geocoder or the
// static gazetteer; Source records which.
type GeocodeResult struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Source  string  `json:"source"`
	Input   string  `json:"input"`
	Address string  `json:"address,omitempty"`
}

// Coordinates returns the resolved point.
func (g *GeocodeResult) Coordinates() Coordinates {
	return Coordinates{Lat: g.Lat, Lng: g.Lng}
}

// SearchCenter is the point distance filtering is measured from.
type SearchCenter struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Source string  `json:"source"`
	Label  string  `json:"label,omitempty"`
}

// Coordinates returns the center point.
func (c *SearchCenter) Coordinates() Coordinates {
	return Coordinates{Lat: c.Lat, Lng: c.Lng}
}
