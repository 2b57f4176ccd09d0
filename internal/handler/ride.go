package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService      *service.RideService
	lifecycleService *service.LifecycleService
	matchingService  *service.MatchingService
	receiptService   *service.ReceiptService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(
	rideService *service.RideService,
	lifecycleService *service.LifecycleService,
	matchingService *service.MatchingService,
	receiptService *service.ReceiptService,
) *RideHandler {
	return &RideHandler{
		rideService:      rideService,
		lifecycleService: lifecycleService,
		matchingService:  matchingService,
		receiptService:   receiptService,
	}
}

// QuoteRequest is the HTTP request body for pricing a trip.
type QuoteRequest struct {
	Pickup    LocationDTO `json:"pickup"`
	Dropoff   LocationDTO `json:"dropoff"`
	RideType  string      `json:"ride_type,omitempty"`
	PromoCode string      `json:"promo_code,omitempty"`
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	RiderID       string      `json:"rider_id"`
	BookingID     string      `json:"booking_id,omitempty"`
	Pickup        LocationDTO `json:"pickup"`
	Dropoff       LocationDTO `json:"dropoff"`
	RideType      string      `json:"ride_type,omitempty"`
	PaymentMethod string      `json:"payment_method,omitempty"` // cash, click, payme, stripe
	PromoCode     string      `json:"promo_code,omitempty"`
}

// CreateRideResponse is the HTTP response for creating a ride.
type CreateRideResponse struct {
	Ride           RideResponse   `json:"ride"`
	Quote          *QuoteResponse `json:"quote,omitempty"`
	DriverAssigned bool           `json:"driver_assigned"`
	DriverID       string         `json:"driver_id,omitempty"`
}

// DriverActionRequest is the HTTP request body for driver-side transitions.
type DriverActionRequest struct {
	DriverID string `json:"driver_id"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// CompleteRideResponse is the HTTP response for completing a ride.
type CompleteRideResponse struct {
	Ride    RideResponse     `json:"ride"`
	Payment *PaymentResponse `json:"payment,omitempty"`
}

// MatchResponse is the HTTP response for an explicit match request.
type MatchResponse struct {
	Ride       RideResponse `json:"ride"`
	DriverID   string       `json:"driver_id"`
	DistanceKm float64      `json:"distance_km"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	RiderID string `json:"rider_id"`
	Rating  int    `json:"rating"`
	Review  string `json:"review,omitempty"`
}

// RatingResponse is the HTTP response for a stored rating.
type RatingResponse struct {
	RideID    string `json:"ride_id"`
	DriverID  string `json:"driver_id"`
	RiderID   string `json:"rider_id"`
	Rating    int    `json:"rating"`
	Review    string `json:"review,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Quote handles POST /v1/rides/quote
func (h *RideHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quote, err := h.rideService.Quote(c.Request.Context(), service.QuoteRequest{
		Pickup:    req.Pickup.toDomain(),
		Dropoff:   req.Dropoff.toDomain(),
		Class:     domain.RideClass(req.RideType),
		PromoCode: req.PromoCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newQuoteResponse(quote))
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	paymentMethod, err := service.ValidatePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		RiderID:       req.RiderID,
		BookingID:     req.BookingID,
		Pickup:        req.Pickup.toDomain(),
		Dropoff:       req.Dropoff.toDomain(),
		Class:         domain.RideClass(req.RideType),
		PaymentMethod: paymentMethod,
		PromoCode:     req.PromoCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Quote == nil {
		status = http.StatusOK // replayed booking
	}

	respondJSON(c, status, CreateRideResponse{
		Ride:           newRideResponse(result.Ride),
		Quote:          newQuoteResponse(result.Quote),
		DriverAssigned: result.DriverAssigned,
		DriverID:       result.DriverID,
	})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// GetAll handles GET /v1/rides?rider_id=&driver_id=&status=&limit=
func (h *RideHandler) GetAll(c *gin.Context) {
	filter := repository.RideFilter{
		RiderID:  c.Query("rider_id"),
		DriverID: c.Query("driver_id"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.RideStatus(strings.TrimSpace(s)))
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(c, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponses(rides))
}

// GetPending handles GET /v1/rides/pending
func (h *RideHandler) GetPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rides, err := h.rideService.ListPending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponses(rides))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	h.driverAction(c, h.lifecycleService.Accept)
}

// MarkArrived handles POST /v1/rides/:id/arrive
func (h *RideHandler) MarkArrived(c *gin.Context) {
	h.driverAction(c, h.lifecycleService.MarkArrived)
}

// StartTrip handles POST /v1/rides/:id/start
func (h *RideHandler) StartTrip(c *gin.Context) {
	h.driverAction(c, h.lifecycleService.StartTrip)
}

type rideAction func(ctx context.Context, rideID, driverID string) (*domain.Ride, error)

func (h *RideHandler) driverAction(c *gin.Context, action rideAction) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := action(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req DriverActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.lifecycleService.Complete(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompleteRideResponse{
		Ride:    newRideResponse(result.Ride),
		Payment: newPaymentResponse(result.Payment),
	})
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.lifecycleService.Cancel(c.Request.Context(), service.CancelRideRequest{
		RideID:      c.Param("id"),
		CancelledBy: req.CancelledBy,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride))
}

// MatchRide handles POST /v1/rides/:id/match
func (h *RideHandler) MatchRide(c *gin.Context) {
	result, err := h.matchingService.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, MatchResponse{
		Ride:       newRideResponse(result.Ride),
		DriverID:   result.DriverID,
		DistanceKm: result.DistanceKm,
	})
}

// GetReceipt handles GET /v1/rides/:id/receipt[?format=text]
func (h *RideHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
		return
	}
	respondJSON(c, http.StatusOK, newReceiptResponse(receipt))
}

// RateRide handles POST /v1/rides/:id/rating
func (h *RideHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	rating, err := h.rideService.RateRide(c.Request.Context(), service.RateRideRequest{
		RideID:  c.Param("id"),
		RiderID: req.RiderID,
		Score:   req.Rating,
		Review:  req.Review,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RatingResponse{
		RideID:    rating.RideID,
		DriverID:  rating.DriverID,
		RiderID:   rating.RiderID,
		Rating:    rating.Score,
		Review:    rating.Review,
		CreatedAt: rating.CreatedAt.Format(timeLayout),
	})
}
