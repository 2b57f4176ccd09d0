package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// ErrNoRoute is returned when the provider finds no driving route.
var ErrNoRoute = errors.New("no route found")

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lng float64
}

// Route is a driving route summary.
type Route struct {
	DistanceMeters  int64
	DurationSeconds int64
	Polyline        string
}

// RouteService handles interactions with the Directions API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

// NewRouteService creates a new RouteService.
func NewRouteService(client *maps.Client, language, region string) *RouteService {
	return &RouteService{
		client:   client,
		language: language,
		region:   region,
	}
}

// Route returns the first driving route from origin to destination.
func (s *RouteService) Route(ctx context.Context, origin, destination Point) (*Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      formatPoint(origin),
		Destination: formatPoint(destination),
		Mode:        maps.TravelModeDriving,
		Language:    s.language,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	result := &Route{Polyline: routes[0].OverviewPolyline.Points}
	for _, leg := range routes[0].Legs {
		result.DistanceMeters += int64(leg.Distance.Meters)
		result.DurationSeconds += int64(leg.Duration.Seconds())
	}
	return result, nil
}

func formatPoint(p Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
