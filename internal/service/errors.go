package service

import "errors"

var (
	// ErrStaleTransition is returned when a ride left the expected state
	// between read and write.
	ErrStaleTransition = errors.New("ride state changed concurrently")

	// ErrCancellationNotAllowed is returned when cancelling after the driver
	// has started arriving.
	ErrCancellationNotAllowed = errors.New("ride cannot be cancelled in current state")

	// ErrNoDriverAvailable is returned when no driver can be matched.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrMatchInProgress is returned when another process is matching the ride.
	ErrMatchInProgress = errors.New("ride matching already in progress")

	// ErrDriverHasActiveRide is returned when driver already has an active ride.
	ErrDriverHasActiveRide = errors.New("driver already has an active ride")

	// ErrDriverNotAssignedToRide is returned when driver is not assigned to the ride.
	ErrDriverNotAssignedToRide = errors.New("driver not assigned to this ride")

	// ErrNotRideParticipant is returned when a caller is neither the rider
	// nor the assigned driver.
	ErrNotRideParticipant = errors.New("caller is not a participant of this ride")

	// ErrDriverOffline is returned when an offline driver tries to accept.
	ErrDriverOffline = errors.New("driver is offline")

	// ErrInconsistentCallback is returned when a provider reports a status
	// that contradicts the recorded one.
	ErrInconsistentCallback = errors.New("payment callback contradicts recorded status")

	// ErrDuplicatePayment is returned when the ride already has a completed payment.
	ErrDuplicatePayment = errors.New("ride already paid")

	// ErrPaymentNotAwaitingCash is returned when confirming cash on a
	// non-cash or settled transaction.
	ErrPaymentNotAwaitingCash = errors.New("payment is not awaiting cash")

	// ErrPromoNotFound is returned when a promo code does not exist.
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrPromoUnavailable is returned when a promo code is inactive or exhausted.
	ErrPromoUnavailable = errors.New("promo code inactive or exhausted")

	// ErrRideNotCompleted is returned when rating or receipting an unfinished ride.
	ErrRideNotCompleted = errors.New("ride not completed")

	// ErrAlreadyRated is returned when a ride already has a rating.
	ErrAlreadyRated = errors.New("ride already rated")

	// ErrRiderNotFound is returned when creating a ride for an unknown profile.
	ErrRiderNotFound = errors.New("rider profile not found")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidTransactionID is returned when transaction ID is empty.
	ErrInvalidTransactionID = errors.New("invalid transaction id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRideStatus is returned when filtering by an unknown status.
	ErrInvalidRideStatus = errors.New("invalid ride status")

	// ErrInvalidRideClass is returned for an unknown vehicle class.
	ErrInvalidRideClass = errors.New("invalid ride class")

	// ErrInvalidFareInput is returned for negative distance or duration,
	// a non-positive class multiplier or a surge below 1.
	ErrInvalidFareInput = errors.New("invalid fare input")

	// ErrInvalidPaymentAmount is returned when payment amount is invalid.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidPaymentStatus is returned for an unrecognised callback status.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")

	// ErrInvalidPromoCode is returned when a promo code is empty or malformed.
	ErrInvalidPromoCode = errors.New("invalid promo code")

	// ErrInvalidDiscount is returned when a promo definition is malformed.
	ErrInvalidDiscount = errors.New("invalid discount")

	// ErrInvalidRating is returned when a score is outside 1..5.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidVehicle is returned when registering a driver without a plate.
	ErrInvalidVehicle = errors.New("invalid vehicle")

	// ErrInvalidProfile is returned when a profile is missing its name or role.
	ErrInvalidProfile = errors.New("invalid profile")
)

// errNoLocationIndex is returned internally when surge has no supply source.
var errNoLocationIndex = errors.New("driver location index not configured")
