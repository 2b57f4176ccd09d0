package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

const (
	defaultSearchRadiusKm = 5.0
	matchLockTTL          = 10 * time.Second
	defaultSweepBatch     = 50
)

// MatchingConfig contains matching configuration.
type MatchingConfig struct {
	RadiusKm   float64 // candidates beyond this distance are ignored
	SweepBatch int     // pending rides examined per sweep
}

// MatchingService pairs pending rides with available drivers.
type MatchingService struct {
	store     repository.Store
	lifecycle *LifecycleService
	lockStore redis.LockStoreInterface // optional
	config    MatchingConfig
}

// NewMatchingService creates a new MatchingService. lockStore may be nil.
func NewMatchingService(
	store repository.Store,
	lifecycle *LifecycleService,
	lockStore redis.LockStoreInterface,
	config MatchingConfig,
) *MatchingService {
	if config.RadiusKm <= 0 {
		config.RadiusKm = defaultSearchRadiusKm
	}
	if config.SweepBatch <= 0 {
		config.SweepBatch = defaultSweepBatch
	}
	return &MatchingService{
		store:     store,
		lifecycle: lifecycle,
		lockStore: lockStore,
		config:    config,
	}
}

// MatchResult contains the result of a successful match.
type MatchResult struct {
	DriverID   string
	DistanceKm float64
	Ride       *domain.Ride
}

type candidate struct {
	driver     *domain.Driver
	distanceKm float64
}

// Match assigns the nearest available driver to a pending ride. The claim
// goes through the ride state machine, so a concurrent accept by a driver
// wins cleanly and Match reports ErrStaleTransition.
func (s *MatchingService) Match(ctx context.Context, rideID string) (*MatchResult, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	if s.lockStore != nil {
		token, locked, err := s.lockStore.AcquireMatchLock(ctx, rideID, matchLockTTL)
		if err != nil {
			// The lock only saves work; matching stays correct without it.
			log.Printf("[MATCHING] lock unavailable for ride=%s: %v", rideID, err)
		} else if !locked {
			return nil, ErrMatchInProgress
		} else {
			defer func() {
				if err := s.lockStore.ReleaseMatchLock(context.WithoutCancel(ctx), rideID, token); err != nil {
					log.Printf("[MATCHING] failed to release lock for ride=%s: %v", rideID, err)
				}
			}()
		}
	}

	ride, err := s.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusPending {
		return nil, ErrStaleTransition
	}

	candidates, err := s.rankCandidates(ctx, ride)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		accepted, err := s.lifecycle.Accept(ctx, ride.ID, c.driver.ID)
		switch {
		case err == nil:
			log.Printf("[MATCHING] ride=%s matched driver=%s distance=%.2fkm", ride.ID, c.driver.ID, c.distanceKm)
			return &MatchResult{
				DriverID:   c.driver.ID,
				DistanceKm: c.distanceKm,
				Ride:       accepted,
			}, nil
		case errors.Is(err, ErrDriverHasActiveRide), errors.Is(err, ErrDriverOffline), errors.Is(err, repository.ErrNotFound):
			// Candidate went away since the listing; try the next one.
			continue
		default:
			return nil, err
		}
	}

	return nil, ErrNoDriverAvailable
}

// rankCandidates lists available drivers within the radius, nearest first
// with ties broken by the lowest id.
func (s *MatchingService) rankCandidates(ctx context.Context, ride *domain.Ride) ([]candidate, error) {
	drivers, err := s.store.Drivers().ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.HasPosition {
			continue
		}
		dist := haversineKm(ride.Pickup.Lat, ride.Pickup.Lng, d.Lat, d.Lng)
		if dist > s.config.RadiusKm {
			continue
		}
		candidates = append(candidates, candidate{driver: d, distanceKm: dist})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distanceKm != candidates[j].distanceKm {
			return candidates[i].distanceKm < candidates[j].distanceKm
		}
		return candidates[i].driver.ID < candidates[j].driver.ID
	})
	return candidates, nil
}

// SweepResult summarises one pass over the pending pool.
type SweepResult struct {
	Examined int
	Matched  int
}

// SweepPending tries to match every pending ride, oldest first.
func (s *MatchingService) SweepPending(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	rides, err := s.store.Rides().ListPending(ctx, s.config.SweepBatch)
	if err != nil {
		return result, err
	}

	for _, ride := range rides {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Examined++

		_, err := s.Match(ctx, ride.ID)
		switch {
		case err == nil:
			result.Matched++
		case errors.Is(err, ErrNoDriverAvailable), errors.Is(err, ErrStaleTransition), errors.Is(err, ErrMatchInProgress):
		default:
			log.Printf("[MATCHING] sweep failed for ride=%s: %v", ride.ID, err)
		}
	}

	if result.Examined > 0 {
		log.Printf("[MATCHING] sweep examined=%d matched=%d", result.Examined, result.Matched)
	}
	return result, nil
}
