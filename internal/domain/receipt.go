package domain

import "time"

// Receipt summarizes a completed ride.
type Receipt struct {
	ID              string
	RideID          string
	RiderID         string
	DriverID        string
	Pickup          Location
	Dropoff         Location
	Class           RideClass
	DistanceKm      float64 // rounded to 0.1
	DurationMin     int64
	Fare            FareBreakdown
	SurgeMultiplier float64
	DiscountAmount  int64
	TotalFare       int64
	Currency        string
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	TransactionID   string
	CompletedAt     time.Time
	CreatedAt       time.Time
}

// Rating is a rider's 1-5 score for a completed ride.
type Rating struct {
	RideID    string
	DriverID  string
	RiderID   string
	Score     int
	Review    string
	CreatedAt time.Time
}
