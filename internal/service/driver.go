package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridecore/internal/domain"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

// PendingSweeper matches the pending pool.
type PendingSweeper interface {
	SweepPending(ctx context.Context) (SweepResult, error)
}

// Ensure MatchingService implements PendingSweeper.
var _ PendingSweeper = (*MatchingService)(nil)

// DriverService handles driver registration and presence.
type DriverService struct {
	store               repository.Store
	locationStore       redis.LocationStoreInterface // optional
	sweeper             PendingSweeper               // optional
	notificationService *NotificationService
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	store repository.Store,
	locationStore redis.LocationStoreInterface,
	sweeper PendingSweeper,
	notificationService *NotificationService,
) *DriverService {
	return &DriverService{
		store:               store,
		locationStore:       locationStore,
		sweeper:             sweeper,
		notificationService: notificationService,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	UserID  string
	Vehicle domain.Vehicle
}

// RegisterDriver creates an offline driver for an existing driver profile.
func (s *DriverService) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.UserID == "" {
		return nil, ErrInvalidProfile
	}
	if strings.TrimSpace(req.Vehicle.Plate) == "" {
		return nil, ErrInvalidVehicle
	}

	profile, err := s.store.Profiles().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if profile.Role != domain.RoleDriver {
		return nil, ErrInvalidProfile
	}

	driver := &domain.Driver{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Rating:    5.0,
		Vehicle:   req.Vehicle,
		UpdatedAt: time.Now(),
	}
	if err := s.store.Drivers().Create(ctx, driver); err != nil {
		return nil, err
	}

	log.Printf("[DRIVER] registered driver=%s user=%s plate=%s", driver.ID, driver.UserID, driver.Vehicle.Plate)
	return driver, nil
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.store.Drivers().GetByID(ctx, driverID)
}

// ListDrivers retrieves all drivers.
func (s *DriverService) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.store.Drivers().GetAll(ctx)
}

// SetOnline toggles a driver's presence. Going online re-runs matching for
// the pending pool; going offline removes the driver from the GEO index.
func (s *DriverService) SetOnline(ctx context.Context, driverID string, online bool) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if err := s.store.Drivers().SetOnline(ctx, driverID, online); err != nil {
		return nil, err
	}

	driver, err := s.store.Drivers().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if online {
		if s.locationStore != nil && driver.HasPosition {
			if err := s.locationStore.UpdateLocation(ctx, driver.ID, driver.Lat, driver.Lng); err != nil {
				log.Printf("[DRIVER] Failed to index driver %s: %v", driver.ID, err)
			}
		}
		if s.sweeper != nil {
			result, err := s.sweeper.SweepPending(ctx)
			if err != nil {
				log.Printf("[DRIVER] sweep after driver %s online failed: %v", driver.ID, err)
			} else if result.Matched > 0 {
				log.Printf("[DRIVER] sweep after driver %s online matched %d/%d", driver.ID, result.Matched, result.Examined)
			}
		}
	} else if s.locationStore != nil {
		if err := s.locationStore.RemoveLocation(ctx, driver.ID); err != nil {
			log.Printf("[DRIVER] Failed to remove driver %s from index: %v", driver.ID, err)
		}
	}

	log.Printf("[DRIVER] driver=%s online=%t", driver.ID, online)
	return driver, nil
}

// UpdateLocationRequest contains the parameters for a driver position report.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
	Heading  float64
	Speed    float64
	RideID   string // optional
}

// UpdateLocation appends a position sample, moves the driver's last-known
// position and publishes it. It never touches ride state.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.DriverLocation, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !isValidPoint(req.Lat, req.Lng) {
		return nil, ErrInvalidLocation
	}

	driver, err := s.store.Drivers().GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}

	loc := &domain.DriverLocation{
		ID:         uuid.New().String(),
		DriverID:   driver.ID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		Heading:    req.Heading,
		Speed:      req.Speed,
		RideID:     req.RideID,
		RecordedAt: time.Now(),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Drivers().AppendLocation(ctx, loc); err != nil {
			return err
		}
		return tx.Drivers().UpdatePosition(ctx, driver.ID, req.Lat, req.Lng, req.Heading)
	})
	if err != nil {
		return nil, err
	}

	if driver.IsOnline && s.locationStore != nil {
		if err := s.locationStore.UpdateLocation(ctx, driver.ID, req.Lat, req.Lng); err != nil {
			log.Printf("[DRIVER] Failed to index driver %s: %v", driver.ID, err)
		}
	}

	if s.notificationService != nil {
		s.notificationService.NotifyDriverMoved(ctx, loc)
	}
	return loc, nil
}

// ListLocations retrieves a driver's most recent position samples.
func (s *DriverService) ListLocations(ctx context.Context, driverID string, limit int) ([]*domain.DriverLocation, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if _, err := s.store.Drivers().GetByID(ctx, driverID); err != nil {
		return nil, err
	}
	return s.store.Drivers().ListLocations(ctx, driverID, limit)
}

// ProfileService manages user profiles.
type ProfileService struct {
	store repository.Store
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store repository.Store) *ProfileService {
	return &ProfileService{store: store}
}

// CreateProfileRequest contains the parameters for creating a profile.
type CreateProfileRequest struct {
	FullName string
	Phone    string
	Role     domain.Role
}

// CreateProfile creates a profile. Role defaults to rider.
func (s *ProfileService) CreateProfile(ctx context.Context, req CreateProfileRequest) (*domain.Profile, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, ErrInvalidProfile
	}

	role := req.Role
	switch role {
	case "":
		role = domain.RoleRider
	case domain.RoleRider, domain.RoleDriver, domain.RoleAdmin:
	default:
		return nil, ErrInvalidProfile
	}

	profile := &domain.Profile{
		ID:        uuid.New().String(),
		FullName:  name,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := s.store.Profiles().Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidProfile
		}
		return nil, err
	}
	return profile, nil
}

// GetProfile retrieves a profile by ID.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, ErrInvalidProfile
	}
	return s.store.Profiles().GetByID(ctx, id)
}
