package providers

import (
	"context"
	"errors"
)

// ErrNoGeocodeResults is returned when the geocoding service finds nothing.
var ErrNoGeocodeResults = errors.New("geocoder returned no results")

// GeocodingProvider resolves a place name through an external service.
type GeocodingProvider interface {
	// Geocode returns the best match for the place name.
	Geocode(ctx context.Context, placeName string) (*GeocodedAddress, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// GeocodedAddress represents a geocoded address
type GeocodedAddress struct {
	FormattedAddress string
	PostalCode       string
	Coordinates      Coordinates
}

// GazetteerEntry is a named point in a static place table.
type GazetteerEntry struct {
	Name        string
	Coordinates Coordinates
}

// Gazetteer resolves place names without any network call.
type Gazetteer interface {
	Lookup(name string) (GazetteerEntry, bool)
}
