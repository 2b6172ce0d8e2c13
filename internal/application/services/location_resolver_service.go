package services

import (
	"context"
	"strings"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
)

// LocationResolverService turns a place name into coordinates. The external
// geocoder is tried first and the static gazetteer second. Results are not cached.
type LocationResolverService struct {
	geocoder  providers.GeocodingProvider
	gazetteer providers.Gazetteer
}

// NewLocationResolverService creates a resolver. A nil geocoder disables the
// primary path.
func NewLocationResolverService(geocoder providers.GeocodingProvider, gazetteer providers.Gazetteer) *LocationResolverService {
	return &LocationResolverService{
		geocoder:  geocoder,
		gazetteer: gazetteer,
	}
}

// Resolve returns nil only when both the geocoder and the gazetteer fail.
// A geocoder failure is recorded on the trace as a degraded geocode step.
func (s *LocationResolverService) Resolve(ctx context.Context, placeName string, trace *entities.SearchTrace) *entities.GeocodeResult {
	ctx, span := observability.StartSpan(ctx, "LocationResolverService.Resolve")
	defer span.End()

	name := strings.TrimSpace(placeName)
	if name == "" {
		return nil
	}
	logger := observability.LoggerFromContext(ctx)

	if s.geocoder != nil {
		addr, err := s.geocoder.Geocode(ctx, name)
		if err == nil && addr != nil {
			return &entities.GeocodeResult{
				Lat:     addr.Coordinates.Latitude,
				Lng:     addr.Coordinates.Longitude,
				Source:  entities.GeocodeSourceOneMap,
				Input:   name,
				Address: addr.FormattedAddress,
			}
		}
		logger.Warn().Err(err).Str("place", name).Msg("geocoder failed, using gazetteer")
		trace.AddError(entities.StepGeocode, apperrors.NewDegradedError(entities.StepGeocode, "geocoder failed for "+name, err))
	}

	if s.gazetteer == nil {
		return nil
	}
	entry, ok := s.gazetteer.Lookup(name)
	if !ok {
		logger.Info().Str("place", name).Msg("place not found in gazetteer")
		return nil
	}

	return &entities.GeocodeResult{
		Lat:    entry.Coordinates.Latitude,
		Lng:    entry.Coordinates.Longitude,
		Source: entities.GeocodeSourceFallback,
		Input:  name,
	}
}
