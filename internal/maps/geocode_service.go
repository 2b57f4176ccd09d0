package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Place is a simplified geocoding result.
type Place struct {
	Address string
	PlaceID string
	Lat     float64
	Lng     float64
}

// GeocodeService handles interactions with the Geocoding API.
type GeocodeService struct {
	client   *maps.Client
	language string
	region   string
	limit    int
}

// NewGeocodeService creates a new GeocodeService returning at most 5 places.
func NewGeocodeService(client *maps.Client, language, region string) *GeocodeService {
	return &GeocodeService{
		client:   client,
		language: language,
		region:   region,
		limit:    5,
	}
}

// Geocode resolves a free-text address.
func (s *GeocodeService) Geocode(ctx context.Context, query string) ([]Place, error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Language: s.language,
		Region:   s.region,
	})
	if err != nil {
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		places = append(places, Place{
			Address: r.FormattedAddress,
			PlaceID: r.PlaceID,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
		})
		if len(places) >= s.limit {
			break
		}
	}
	return places, nil
}
