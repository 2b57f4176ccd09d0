package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"ridecore/internal/domain"
	"ridecore/internal/maps"
	"ridecore/internal/repository"
)

// fallbackSpeedKmh is the assumed average speed when no route is available.
const fallbackSpeedKmh = 30.0

// RouteEstimator resolves driving distance and duration between two points.
type RouteEstimator interface {
	Route(ctx context.Context, origin, destination maps.Point) (*maps.Route, error)
}

// MatchingServiceInterface defines the matching service contract.
type MatchingServiceInterface interface {
	Match(ctx context.Context, rideID string) (*MatchResult, error)
}

// Ensure implementations satisfy the interfaces.
var (
	_ MatchingServiceInterface = (*MatchingService)(nil)
	_ RouteEstimator           = (*maps.RouteService)(nil)
)

// RideService handles ride booking, queries and ratings.
type RideService struct {
	store               repository.Store
	fare                *FareCalculator
	promos              *PromoService
	surgeService        *SurgeService  // optional
	router              RouteEstimator // optional
	matchingService     MatchingServiceInterface
	notificationService *NotificationService
}

// NewRideService creates a new RideService.
func NewRideService(
	store repository.Store,
	fare *FareCalculator,
	promos *PromoService,
	surgeService *SurgeService,
	router RouteEstimator,
	matchingService MatchingServiceInterface,
	notificationService *NotificationService,
) *RideService {
	return &RideService{
		store:               store,
		fare:                fare,
		promos:              promos,
		surgeService:        surgeService,
		router:              router,
		matchingService:     matchingService,
		notificationService: notificationService,
	}
}

// QuoteRequest contains the parameters for pricing a trip.
type QuoteRequest struct {
	Pickup    domain.Location
	Dropoff   domain.Location
	Class     domain.RideClass
	PromoCode string // optional
}

// Quote is a priced trip.
type Quote struct {
	Class           domain.RideClass
	DistanceMeters  int64
	DurationSeconds int64
	RouteEstimated  bool // true when the straight-line fallback was used
	Polyline        string
	SurgeMultiplier float64
	Fare            domain.FareBreakdown
	PromoCode       string
	Discount        int64
	Total           int64
}

// Quote prices a trip without booking it.
func (s *RideService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if !isValidPoint(req.Pickup.Lat, req.Pickup.Lng) {
		return nil, ErrInvalidPickupLocation
	}
	if !isValidPoint(req.Dropoff.Lat, req.Dropoff.Lng) {
		return nil, ErrInvalidDropoffLocation
	}
	if req.Class == "" {
		req.Class = domain.RideClassEconomy
	}
	classMultiplier, err := ClassMultiplier(req.Class)
	if err != nil {
		return nil, err
	}

	quote := &Quote{Class: req.Class, SurgeMultiplier: 1.0}
	s.estimateRoute(ctx, req.Pickup, req.Dropoff, quote)

	if s.surgeService != nil {
		quote.SurgeMultiplier = s.surgeService.GetMultiplier(ctx, req.Pickup.Lat, req.Pickup.Lng)
	}

	quote.Fare, err = s.fare.Compute(quote.DistanceMeters, quote.DurationSeconds, classMultiplier, quote.SurgeMultiplier)
	if err != nil {
		return nil, err
	}
	quote.Total = quote.Fare.Total

	if req.PromoCode != "" {
		promo, err := s.promos.Validate(ctx, req.PromoCode, quote.Fare.Total)
		if err != nil {
			return nil, err
		}
		quote.PromoCode = promo.Code
		quote.Discount = promo.Discount
		quote.Total = promo.FinalAmount
	}

	return quote, nil
}

// estimateRoute fills distance and duration from the mapping provider,
// falling back to great-circle distance at fallbackSpeedKmh.
func (s *RideService) estimateRoute(ctx context.Context, from, to domain.Location, quote *Quote) {
	if s.router != nil {
		route, err := s.router.Route(ctx, maps.Point{Lat: from.Lat, Lng: from.Lng}, maps.Point{Lat: to.Lat, Lng: to.Lng})
		if err == nil {
			quote.DistanceMeters = route.DistanceMeters
			quote.DurationSeconds = route.DurationSeconds
			quote.Polyline = route.Polyline
			return
		}
		log.Printf("[RIDE] route lookup failed, using estimate: %v", err)
	}

	km := haversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	quote.DistanceMeters = int64(math.Round(km * 1000))
	quote.DurationSeconds = int64(math.Round(km / fallbackSpeedKmh * 3600))
	quote.RouteEstimated = true
}

// CreateRideRequest contains the parameters for booking a ride.
type CreateRideRequest struct {
	RiderID       string
	BookingID     string // optional client-chosen ride ID for safe retries
	Pickup        domain.Location
	Dropoff       domain.Location
	Class         domain.RideClass
	PaymentMethod domain.PaymentMethod // optional: defaults to cash
	PromoCode     string
}

// CreateRideResponse contains the result of creating a ride.
type CreateRideResponse struct {
	Ride           *domain.Ride
	Quote          *Quote
	DriverAssigned bool
	DriverID       string
}

// CreateRide books a ride and tries to match it immediately. A ride that
// cannot be matched yet stays pending for the sweeper.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*CreateRideResponse, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}

	paymentMethod, err := ValidatePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return nil, err
	}

	rideID := uuid.New().String()
	if req.BookingID != "" {
		if _, err := uuid.Parse(req.BookingID); err != nil {
			return nil, ErrInvalidRideID
		}
		rideID = req.BookingID

		if existing, err := s.store.Rides().GetByID(ctx, rideID); err == nil {
			return s.replayBooking(existing, req.RiderID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if _, err := s.store.Profiles().GetByID(ctx, req.RiderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRiderNotFound
		}
		return nil, err
	}

	quote, err := s.Quote(ctx, QuoteRequest{
		Pickup:    req.Pickup,
		Dropoff:   req.Dropoff,
		Class:     req.Class,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ride := &domain.Ride{
		ID:              rideID,
		RiderID:         req.RiderID,
		Pickup:          req.Pickup,
		Dropoff:         req.Dropoff,
		Class:           quote.Class,
		DistanceMeters:  quote.DistanceMeters,
		DurationSeconds: quote.DurationSeconds,
		Fare:            quote.Fare,
		PromoCode:       quote.PromoCode,
		DiscountAmount:  quote.Discount,
		FareAmount:      quote.Total,
		SurgeMultiplier: quote.SurgeMultiplier,
		PaymentMethod:   paymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.RideStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Rides().Create(ctx, ride); err != nil {
			return err
		}
		if ride.PromoCode == "" {
			return nil
		}
		_, err := s.promos.redeemIn(ctx, tx, ride.PromoCode, ride.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) && req.BookingID != "" {
			existing, getErr := s.store.Rides().GetByID(ctx, rideID)
			if getErr != nil {
				return nil, getErr
			}
			return s.replayBooking(existing, req.RiderID)
		}
		return nil, err
	}

	log.Printf("[RIDE] created ride=%s rider=%s class=%s fare=%d surge=%.2f promo=%q",
		ride.ID, ride.RiderID, ride.Class, ride.FareAmount, ride.SurgeMultiplier, ride.PromoCode)
	if s.notificationService != nil {
		s.notificationService.NotifyRideCreated(ctx, ride)
	}

	resp := &CreateRideResponse{Ride: ride, Quote: quote}
	if s.matchingService == nil {
		return resp, nil
	}

	match, err := s.matchingService.Match(ctx, ride.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoDriverAvailable), errors.Is(err, ErrMatchInProgress), errors.Is(err, ErrStaleTransition):
		default:
			log.Printf("[RIDE] matching failed for ride=%s: %v", ride.ID, err)
		}
		return resp, nil
	}

	resp.Ride = match.Ride
	resp.DriverAssigned = true
	resp.DriverID = match.DriverID
	return resp, nil
}

// replayBooking answers a retried booking with the ride it created.
func (s *RideService) replayBooking(ride *domain.Ride, riderID string) (*CreateRideResponse, error) {
	if ride.RiderID != riderID {
		return nil, repository.ErrDuplicate
	}
	return &CreateRideResponse{
		Ride:           ride,
		DriverAssigned: ride.DriverID != "",
		DriverID:       ride.DriverID,
	}, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.store.Rides().GetByID(ctx, rideID)
}

// ListRides retrieves rides matching filter, newest first.
func (s *RideService) ListRides(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, ErrInvalidRideStatus
		}
	}
	return s.store.Rides().List(ctx, filter)
}

// ListPending retrieves the pending pool, oldest first.
func (s *RideService) ListPending(ctx context.Context, limit int) ([]*domain.Ride, error) {
	return s.store.Rides().ListPending(ctx, limit)
}

// RateRideRequest contains the parameters for rating a ride.
type RateRideRequest struct {
	RideID  string
	RiderID string
	Score   int
	Review  string
}

// RateRide stores the rider's rating and refreshes the driver's average.
func (s *RideService) RateRide(ctx context.Context, req RateRideRequest) (*domain.Rating, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Score < 1 || req.Score > 5 {
		return nil, ErrInvalidRating
	}

	ride, err := s.store.Rides().GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != req.RiderID {
		return nil, ErrNotRideParticipant
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	rating := &domain.Rating{
		RideID:    ride.ID,
		DriverID:  ride.DriverID,
		RiderID:   ride.RiderID,
		Score:     req.Score,
		Review:    req.Review,
		CreatedAt: time.Now(),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Ratings().Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyRated
			}
			return err
		}

		avg, _, err := tx.Ratings().AverageForDriver(ctx, ride.DriverID)
		if err != nil {
			return err
		}
		return tx.Drivers().UpdateRating(ctx, ride.DriverID, math.Round(avg*100)/100)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RIDE] ride=%s rated %d by rider=%s", ride.ID, req.Score, req.RiderID)
	return rating, nil
}

// ValidatePaymentMethod validates a payment method string.
func ValidatePaymentMethod(method string) (domain.PaymentMethod, error) {
	switch domain.PaymentMethod(method) {
	case domain.PaymentMethodCash, domain.PaymentMethodClick,
		domain.PaymentMethodPayme, domain.PaymentMethodStripe:
		return domain.PaymentMethod(method), nil
	case "":
		return domain.PaymentMethodCash, nil // Default to cash
	default:
		return "", ErrInvalidPaymentMethod
	}
}
