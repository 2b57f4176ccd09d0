package service

import (
	"context"
	"log"

	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

const surgeDemandScan = 500

// SurgeService calculates surge pricing based on supply and demand.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	config        SurgeConfig
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	config SurgeConfig,
) *SurgeService {
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		config:        config,
	}
}

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	Enabled        bool
	RadiusKm       float64 // Radius to check for supply/demand
	LowSurgeRatio  float64 // Demand/supply ratio for 1.25x surge
	MedSurgeRatio  float64 // Demand/supply ratio for 1.5x surge
	HighSurgeRatio float64 // Demand/supply ratio for MaxSurge
	MaxSurge       float64
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		Enabled:        true,
		RadiusKm:       5.0,
		LowSurgeRatio:  1.2,
		MedSurgeRatio:  1.5,
		HighSurgeRatio: 2.0,
		MaxSurge:       2.0,
	}
}

// GetMultiplier calculates the surge multiplier for a pickup point.
// Returns 1.0 on any lookup failure.
func (s *SurgeService) GetMultiplier(ctx context.Context, lat, lng float64) float64 {
	if !s.config.Enabled {
		return 1.0
	}

	supply, err := s.countDriversInArea(ctx, lat, lng)
	if err != nil {
		log.Printf("[SURGE] supply lookup failed, no surge: %v", err)
		return 1.0
	}

	demand, err := s.countPendingInArea(ctx, lat, lng)
	if err != nil {
		log.Printf("[SURGE] demand lookup failed, no surge: %v", err)
		return 1.0
	}

	return calculateSurgeMultiplier(supply, demand, s.config)
}

func (s *SurgeService) countDriversInArea(ctx context.Context, lat, lng float64) (int, error) {
	if s.locationStore == nil {
		return 0, errNoLocationIndex
	}
	drivers, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, s.config.RadiusKm)
	if err != nil {
		return 0, err
	}
	return len(drivers), nil
}

// countPendingInArea counts pending rides whose pickup is within radius.
func (s *SurgeService) countPendingInArea(ctx context.Context, lat, lng float64) (int, error) {
	rides, err := s.rideRepo.ListPending(ctx, surgeDemandScan)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ride := range rides {
		if haversineKm(lat, lng, ride.Pickup.Lat, ride.Pickup.Lng) <= s.config.RadiusKm {
			count++
		}
	}
	return count, nil
}

// calculateSurgeMultiplier determines the multiplier based on supply/demand ratio.
func calculateSurgeMultiplier(supply, demand int, config SurgeConfig) float64 {
	if supply == 0 {
		if demand > 0 {
			return config.MaxSurge
		}
		return 1.0
	}

	ratio := float64(demand) / float64(supply)

	switch {
	case ratio >= config.HighSurgeRatio:
		return config.MaxSurge
	case ratio >= config.MedSurgeRatio:
		return 1.5
	case ratio >= config.LowSurgeRatio:
		return 1.25
	default:
		return 1.0
	}
}
