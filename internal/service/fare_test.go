package service_test

import (
	"errors"
	"math"
	"testing"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// ──────────────────────────────────────────────
// 1. FARE CALCULATION
// ──────────────────────────────────────────────

func TestFare_ComponentsAndTotal(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())

	// 5 km, 10 min
	fare, err := calc.Compute(5000, 600, 1.0, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fare.Base != 5000 || fare.DistanceFare != 15000 || fare.TimeFare != 5000 {
		t.Errorf("unexpected components: %+v", fare)
	}
	if fare.Total != 25000 {
		t.Errorf("expected total 25000, got %d", fare.Total)
	}
}

func TestFare_ClassAndSurgeMultipliers(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())

	tests := []struct {
		name  string
		class domain.RideClass
		surge float64
		want  int64
	}{
		{"economy", domain.RideClassEconomy, 1.0, 25000},
		{"comfort", domain.RideClassComfort, 1.0, 37500},
		{"xl", domain.RideClassXL, 1.0, 45000},
		{"premium", domain.RideClassPremium, 1.0, 62500},
		{"comfort with surge", domain.RideClassComfort, 1.25, 46875},
		{"economy max surge", domain.RideClassEconomy, 2.0, 50000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fare, err := calc.ComputeForClass(5000, 600, tt.class, tt.surge)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fare.Total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, fare.Total)
			}
		})
	}
}

func TestFare_RoundsEachComponentHalfUp(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.FareConfig{Base: 0, PerKm: 1, PerMin: 500})

	fare, err := calc.Compute(500, 0, 1.0, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fare.DistanceFare != 1 {
		t.Errorf("expected 0.5 to round up to 1, got %d", fare.DistanceFare)
	}

	fare, _ = calc.Compute(499, 0, 1.0, 1.0)
	if fare.DistanceFare != 0 {
		t.Errorf("expected 0.499 to round down to 0, got %d", fare.DistanceFare)
	}

	// 2 s at 500/min is 16.67
	fare, _ = calc.Compute(0, 2, 1.0, 1.0)
	if fare.TimeFare != 17 {
		t.Errorf("expected time fare 17, got %d", fare.TimeFare)
	}
}

func TestFare_TotalRoundsAfterMultipliers(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.FareConfig{Base: 25001})

	// 25001 * 1.5 = 37501.5
	fare, err := calc.Compute(0, 0, 1.5, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fare.Total != 37502 {
		t.Errorf("expected 37502, got %d", fare.Total)
	}
}

func TestFare_ZeroTripChargesBase(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())
	fare, err := calc.Compute(0, 0, 1.0, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fare.Total != 5000 {
		t.Errorf("expected base fare 5000, got %d", fare.Total)
	}
}

func TestFare_InvalidInput(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())

	tests := []struct {
		name     string
		distance int64
		duration int64
		class    float64
		surge    float64
	}{
		{"negative distance", -1, 0, 1.0, 1.0},
		{"negative duration", 0, -1, 1.0, 1.0},
		{"zero class", 1000, 60, 0, 1.0},
		{"surge below one", 1000, 60, 1.0, 0.9},
		{"nan surge", 1000, 60, 1.0, math.NaN()},
	}

	for _, tt := range tests {
		if _, err := calc.Compute(tt.distance, tt.duration, tt.class, tt.surge); !errors.Is(err, service.ErrInvalidFareInput) {
			t.Errorf("%s: expected ErrInvalidFareInput, got %v", tt.name, err)
		}
	}
}

func TestFare_UnknownClass(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())
	_, err := calc.ComputeForClass(1000, 60, domain.RideClass("limo"), 1.0)
	if !errors.Is(err, service.ErrInvalidRideClass) {
		t.Errorf("expected ErrInvalidRideClass, got %v", err)
	}
}

func TestFare_NeverDecreasesAsInputsGrow(t *testing.T) {
	t.Parallel()

	calc := service.NewFareCalculator(service.DefaultFareConfig())
	total := func(meters, seconds int64, class, surge float64) int64 {
		t.Helper()
		fare, err := calc.Compute(meters, seconds, class, surge)
		if err != nil {
			t.Fatalf("compute(%d, %d, %.2f, %.2f): %v", meters, seconds, class, surge, err)
		}
		return fare.Total
	}

	// Step sizes below one rounding unit catch ties that could flip downward.
	prev := int64(0)
	for m := int64(0); m <= 30000; m += 17 {
		got := total(m, 600, 1.0, 1.0)
		if got < prev {
			t.Fatalf("distance %d m: total fell from %d to %d", m, prev, got)
		}
		prev = got
	}

	prev = 0
	for s := int64(0); s <= 7200; s += 7 {
		got := total(5000, s, 1.0, 1.0)
		if got < prev {
			t.Fatalf("duration %d s: total fell from %d to %d", s, prev, got)
		}
		prev = got
	}

	prev = 0
	for _, class := range []domain.RideClass{domain.RideClassEconomy, domain.RideClassComfort, domain.RideClassXL, domain.RideClassPremium} {
		m, err := service.ClassMultiplier(class)
		if err != nil {
			t.Fatalf("class %s: %v", class, err)
		}
		got := total(5000, 600, m, 1.0)
		if got < prev {
			t.Fatalf("class %s: total fell from %d to %d", class, prev, got)
		}
		prev = got
	}

	prev = 0
	for surge := 1.0; surge <= 3.0; surge += 0.05 {
		got := total(5000, 600, 1.5, surge)
		if got < prev {
			t.Fatalf("surge %.2f: total fell from %d to %d", surge, prev, got)
		}
		prev = got
	}
}
