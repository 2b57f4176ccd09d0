package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/maps"
)

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]maps.Place, error)
}

// MapsHandler handles HTTP requests for the mapping provider.
type MapsHandler struct {
	geocoder Geocoder // nil when no API key is configured
}

// NewMapsHandler creates a new MapsHandler.
func NewMapsHandler(geocoder Geocoder) *MapsHandler {
	return &MapsHandler{geocoder: geocoder}
}

// PlaceResponse is one geocoding match.
type PlaceResponse struct {
	Address string  `json:"address"`
	PlaceID string  `json:"place_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Geocode handles GET /v1/maps/geocode?q=
func (h *MapsHandler) Geocode(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "q is required")
		return
	}
	if h.geocoder == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "geocoding is not configured"})
		return
	}

	places, err := h.geocoder.Geocode(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "geocoding failed"})
		return
	}

	response := make([]PlaceResponse, 0, len(places))
	for _, p := range places {
		response = append(response, PlaceResponse{
			Address: p.Address,
			PlaceID: p.PlaceID,
			Lat:     p.Lat,
			Lng:     p.Lng,
		})
	}
	respondJSON(c, http.StatusOK, response)
}
