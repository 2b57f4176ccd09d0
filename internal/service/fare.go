package service

import (
	"math"

	"ridecore/internal/domain"
)

// FareConfig holds the per-market tariff in whole currency units.
type FareConfig struct {
	Base   int64 // flat charge per ride
	PerKm  int64
	PerMin int64
}

// DefaultFareConfig returns the Tashkent tariff.
func DefaultFareConfig() FareConfig {
	return FareConfig{
		Base:   5000,
		PerKm:  3000,
		PerMin: 500,
	}
}

var classMultipliers = map[domain.RideClass]float64{
	domain.RideClassEconomy: 1.0,
	domain.RideClassComfort: 1.5,
	domain.RideClassXL:      1.8,
	domain.RideClassPremium: 2.5,
}

// ClassMultiplier returns the fare multiplier for a vehicle class.
func ClassMultiplier(class domain.RideClass) (float64, error) {
	m, ok := classMultipliers[class]
	if !ok {
		return 0, ErrInvalidRideClass
	}
	return m, nil
}

// FareCalculator computes ride fares. It is stateless apart from its tariff.
type FareCalculator struct {
	config FareConfig
}

// NewFareCalculator creates a new FareCalculator.
func NewFareCalculator(config FareConfig) *FareCalculator {
	return &FareCalculator{config: config}
}

// Compute prices a trip. Each component is rounded half-up before the sum
// is scaled by class and surge and rounded again.
func (c *FareCalculator) Compute(distanceMeters, durationSeconds int64, classMultiplier, surgeMultiplier float64) (domain.FareBreakdown, error) {
	if distanceMeters < 0 || durationSeconds < 0 {
		return domain.FareBreakdown{}, ErrInvalidFareInput
	}
	if classMultiplier <= 0 || surgeMultiplier < 1 || math.IsNaN(classMultiplier) || math.IsNaN(surgeMultiplier) {
		return domain.FareBreakdown{}, ErrInvalidFareInput
	}

	distanceFare := roundDiv(distanceMeters*c.config.PerKm, 1000)
	timeFare := roundDiv(durationSeconds*c.config.PerMin, 60)
	subtotal := c.config.Base + distanceFare + timeFare

	return domain.FareBreakdown{
		Base:         c.config.Base,
		DistanceFare: distanceFare,
		TimeFare:     timeFare,
		Total:        roundHalfUp(float64(subtotal) * classMultiplier * surgeMultiplier),
	}, nil
}

// ComputeForClass is Compute with the multiplier looked up by class.
func (c *FareCalculator) ComputeForClass(distanceMeters, durationSeconds int64, class domain.RideClass, surgeMultiplier float64) (domain.FareBreakdown, error) {
	m, err := ClassMultiplier(class)
	if err != nil {
		return domain.FareBreakdown{}, err
	}
	return c.Compute(distanceMeters, durationSeconds, m, surgeMultiplier)
}

// roundDiv returns n/d rounded half-up for non-negative n.
func roundDiv(n, d int64) int64 {
	return (n + d/2) / d
}

func roundHalfUp(f float64) int64 {
	return int64(math.Floor(f + 0.5))
}
