package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/payment"
	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrPromoNotFound),
		errors.Is(err, service.ErrRiderNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidTransactionID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRideStatus),
		errors.Is(err, service.ErrInvalidRideClass),
		errors.Is(err, service.ErrInvalidFareInput),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidPaymentStatus),
		errors.Is(err, service.ErrInvalidPromoCode),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidVehicle),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, payment.ErrMalformedCallback),
		errors.Is(err, payment.ErrUnknownProvider):
		return http.StatusBadRequest

	// Signature errors
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, service.ErrStaleTransition),
		errors.Is(err, service.ErrCancellationNotAllowed),
		errors.Is(err, service.ErrDriverHasActiveRide),
		errors.Is(err, service.ErrDriverOffline),
		errors.Is(err, service.ErrMatchInProgress),
		errors.Is(err, service.ErrInconsistentCallback),
		errors.Is(err, service.ErrDuplicatePayment),
		errors.Is(err, service.ErrPaymentNotAwaitingCash),
		errors.Is(err, service.ErrPromoUnavailable),
		errors.Is(err, service.ErrRideNotCompleted),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDriverNotAssignedToRide),
		errors.Is(err, service.ErrNotRideParticipant):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrNoDriverAvailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
