package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusArriving   RideStatus = "arriving"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// rideTransitions lists the allowed next states for each ride status.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:    {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted:   {RideStatusArriving, RideStatusCancelled},
	RideStatusArriving:   {RideStatusInProgress},
	RideStatusInProgress: {RideStatusCompleted},
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to RideStatus) bool {
	for _, next := range rideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// IsActive reports whether a ride in this status occupies its driver.
func (s RideStatus) IsActive() bool {
	return s == RideStatusAccepted || s == RideStatusArriving || s == RideStatusInProgress
}

// HasDriver reports whether a ride in this status must carry a driver id.
func (s RideStatus) HasDriver() bool {
	return s.IsActive() || s == RideStatusCompleted
}

// Valid reports whether s is a known ride status.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusPending, RideStatusAccepted, RideStatusArriving,
		RideStatusInProgress, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// RideClass is the vehicle class requested by the rider.
type RideClass string

const (
	RideClassEconomy RideClass = "economy"
	RideClassComfort RideClass = "comfort"
	RideClassXL      RideClass = "xl"
	RideClassPremium RideClass = "premium"
)

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodClick  PaymentMethod = "click"
	PaymentMethodPayme  PaymentMethod = "payme"
	PaymentMethodStripe PaymentMethod = "stripe"
)

// Location is a geographic point with an optional human-readable address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// Ride represents one rider-requested trip tracked through its lifecycle.
type Ride struct {
	ID              string
	RiderID         string
	DriverID        string // empty until a driver accepts
	Pickup          Location
	Dropoff         Location
	Class           RideClass
	DistanceMeters  int64
	DurationSeconds int64
	Fare            FareBreakdown
	PromoCode       string
	DiscountAmount  int64
	FareAmount      int64   // total after discount, frozen once in_progress
	SurgeMultiplier float64 // 1.0 = no surge
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          RideStatus
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FareBreakdown holds the components of a computed fare in whole currency units.
type FareBreakdown struct {
	Base         int64
	DistanceFare int64
	TimeFare     int64
	Total        int64
}
