// Package maps wraps the Google Maps APIs used for routing and geocoding.
package maps

import (
	"fmt"
	"net/http"

	"googlemaps.github.io/maps"
)

// NewClient creates a Maps client. httpClient may carry APM instrumentation;
// nil uses the library default.
func NewClient(apiKey string, httpClient *http.Client) (*maps.Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}
