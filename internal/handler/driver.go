package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	UserID   string `json:"user_id"`
	CarBrand string `json:"car_brand"`
	CarModel string `json:"car_model"`
	CarPlate string `json:"car_plate"`
	CarColor string `json:"car_color"`
}

// SetOnlineRequest is the HTTP request body for toggling presence.
type SetOnlineRequest struct {
	Online *bool `json:"online"`
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"`
	Speed   float64 `json:"speed"`
	RideID  string  `json:"ride_id,omitempty"`
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.RegisterDriver(c.Request.Context(), service.RegisterDriverRequest{
		UserID: req.UserID,
		Vehicle: domain.Vehicle{
			Brand: req.CarBrand,
			Model: req.CarModel,
			Plate: req.CarPlate,
			Color: req.CarColor,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newDriverResponse(driver))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverService.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, newDriverResponse(d))
	}
	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/drivers/:id
func (h *DriverHandler) Get(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// SetOnline handles POST /v1/drivers/:id/online
func (h *DriverHandler) SetOnline(c *gin.Context) {
	var req SetOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		badRequest(c, "online is required")
		return
	}

	driver, err := h.driverService.SetOnline(c.Request.Context(), c.Param("id"), *req.Online)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	loc, err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
		Heading:  req.Heading,
		Speed:    req.Speed,
		RideID:   req.RideID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverLocationResponse(loc))
}

// GetLocations handles GET /v1/drivers/:id/locations?limit=
func (h *DriverHandler) GetLocations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	locations, err := h.driverService.ListLocations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverLocationResponse, 0, len(locations))
	for _, l := range locations {
		response = append(response, newDriverLocationResponse(l))
	}
	respondJSON(c, http.StatusOK, response)
}
