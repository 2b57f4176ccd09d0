package domain

import "time"

// Vehicle describes the car a driver operates.
type Vehicle struct {
	Brand string
	Model string
	Plate string
	Color string
}

// Driver represents the online-presence view of a driver.
type Driver struct {
	ID            string
	UserID        string
	IsOnline      bool
	HasPosition   bool
	Lat           float64
	Lng           float64
	Heading       float64
	Rating        float64
	Vehicle       Vehicle
	TotalRides    int64
	TotalEarnings int64
	UpdatedAt     time.Time
}

// DriverLocation is one append-only position sample reported by a driver.
type DriverLocation struct {
	ID         string
	DriverID   string
	Lat        float64
	Lng        float64
	Heading    float64
	Speed      float64
	RideID     string // optional
	RecordedAt time.Time
}
