package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// PaymentStarter opens the payment for a completed ride.
type PaymentStarter interface {
	BeginPayment(ctx context.Context, req BeginPaymentRequest) (*BeginPaymentResult, error)
}

// Ensure PaymentService implements PaymentStarter.
var _ PaymentStarter = (*PaymentService)(nil)

// LifecycleService drives a ride through its state machine. Every move is a
// single conditional update, so concurrent callers race safely: exactly one
// wins and the rest get ErrStaleTransition.
type LifecycleService struct {
	store               repository.Store
	payments            PaymentStarter
	notificationService *NotificationService
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	store repository.Store,
	payments PaymentStarter,
	notificationService *NotificationService,
) *LifecycleService {
	return &LifecycleService{
		store:               store,
		payments:            payments,
		notificationService: notificationService,
	}
}

// Accept assigns a pending ride to driverID.
func (s *LifecycleService) Accept(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.store.Drivers().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !driver.IsOnline {
		return nil, ErrDriverOffline
	}

	ride, err := s.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusPending {
		return nil, ErrStaleTransition
	}

	now := time.Now()
	if err := s.store.Rides().Assign(ctx, rideID, driverID, now); err != nil {
		return nil, mapTransitionError(err)
	}

	ride.Status = domain.RideStatusAccepted
	ride.DriverID = driverID
	ride.UpdatedAt = now

	log.Printf("[LIFECYCLE] ride=%s accepted by driver=%s", ride.ID, driverID)
	s.notify(ctx, ride)
	return ride, nil
}

// MarkArrived records that the assigned driver is at the pickup point.
func (s *LifecycleService) MarkArrived(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.advance(ctx, rideID, driverID, domain.RideStatusAccepted, domain.RideStatusArriving)
}

// StartTrip begins the trip. The ride's fare is final from this point.
func (s *LifecycleService) StartTrip(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.advance(ctx, rideID, driverID, domain.RideStatusArriving, domain.RideStatusInProgress)
}

// CompleteResult is the outcome of finishing a ride.
type CompleteResult struct {
	Ride    *domain.Ride
	Payment *BeginPaymentResult // nil if payment could not be opened
}

// Complete finishes the trip, credits the driver and opens the payment for
// the frozen fare. A payment that cannot be opened is logged and can be
// retried through PaymentService.BeginPayment; the ride stays completed.
func (s *LifecycleService) Complete(ctx context.Context, rideID, driverID string) (*CompleteResult, error) {
	ride, err := s.load(ctx, rideID, driverID, domain.RideStatusInProgress)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Rides().Transition(ctx, repository.RideTransition{
			RideID:   rideID,
			From:     domain.RideStatusInProgress,
			To:       domain.RideStatusCompleted,
			DriverID: driverID,
			At:       now,
		}); err != nil {
			return err
		}

		if err := tx.Drivers().RecordCompletedRide(ctx, driverID, ride.FareAmount); err != nil {
			return fmt.Errorf("failed to record driver earnings: %w", err)
		}

		if ride.FareAmount == 0 {
			return tx.Rides().UpdatePaymentStatus(ctx, rideID, domain.PaymentStatusCompleted, now)
		}
		return nil
	})
	if err != nil {
		return nil, mapTransitionError(err)
	}

	ride.Status = domain.RideStatusCompleted
	ride.UpdatedAt = now
	log.Printf("[LIFECYCLE] ride=%s completed by driver=%s fare=%d", ride.ID, driverID, ride.FareAmount)

	result := &CompleteResult{Ride: ride}
	if ride.FareAmount == 0 {
		ride.PaymentStatus = domain.PaymentStatusCompleted
		s.notify(ctx, ride)
		return result, nil
	}

	s.notify(ctx, ride)

	payment, err := s.payments.BeginPayment(ctx, BeginPaymentRequest{
		RideID: ride.ID,
		Amount: ride.FareAmount,
		Method: ride.PaymentMethod,
	})
	if err != nil {
		log.Printf("[LIFECYCLE] ride=%s payment could not be opened: %v", ride.ID, err)
		return result, nil
	}

	result.Payment = payment
	result.Ride.PaymentStatus = payment.Transaction.Status
	return result, nil
}

// CancelRideRequest contains the parameters for cancelling a ride.
type CancelRideRequest struct {
	RideID      string
	CancelledBy string // rider ID or assigned driver ID
	Reason      string
}

// Cancel cancels a ride that has not yet progressed past accepted and
// releases its driver.
func (s *LifecycleService) Cancel(ctx context.Context, req CancelRideRequest) (*domain.Ride, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.store.Rides().GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if ride.Status.IsTerminal() {
		return nil, ErrStaleTransition
	}
	if req.CancelledBy != ride.RiderID && (ride.DriverID == "" || req.CancelledBy != ride.DriverID) {
		return nil, ErrNotRideParticipant
	}
	if !domain.CanTransition(ride.Status, domain.RideStatusCancelled) {
		return nil, ErrCancellationNotAllowed
	}

	now := time.Now()
	err = s.store.Rides().Transition(ctx, repository.RideTransition{
		RideID:        ride.ID,
		From:          ride.Status,
		To:            domain.RideStatusCancelled,
		DriverID:      ride.DriverID,
		ReleaseDriver: true,
		CancelReason:  req.Reason,
		At:            now,
	})
	if err != nil {
		return nil, mapTransitionError(err)
	}

	previousDriver := ride.DriverID
	ride.Status = domain.RideStatusCancelled
	ride.DriverID = ""
	ride.CancelReason = req.Reason
	ride.UpdatedAt = now

	log.Printf("[LIFECYCLE] ride=%s cancelled by=%s released_driver=%s reason=%q", ride.ID, req.CancelledBy, previousDriver, req.Reason)
	s.notify(ctx, ride)
	return ride, nil
}

// advance applies a driver-guarded transition.
func (s *LifecycleService) advance(ctx context.Context, rideID, driverID string, from, to domain.RideStatus) (*domain.Ride, error) {
	ride, err := s.load(ctx, rideID, driverID, from)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.store.Rides().Transition(ctx, repository.RideTransition{
		RideID:   rideID,
		From:     from,
		To:       to,
		DriverID: driverID,
		At:       now,
	})
	if err != nil {
		return nil, mapTransitionError(err)
	}

	ride.Status = to
	ride.UpdatedAt = now
	log.Printf("[LIFECYCLE] ride=%s %s -> %s driver=%s", ride.ID, from, to, driverID)
	s.notify(ctx, ride)
	return ride, nil
}

// load reads a ride and checks it is in the expected state and assigned to
// driverID.
func (s *LifecycleService) load(ctx context.Context, rideID, driverID string, want domain.RideStatus) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != want {
		return nil, ErrStaleTransition
	}
	if ride.DriverID != driverID {
		return nil, ErrDriverNotAssignedToRide
	}
	return ride, nil
}

func (s *LifecycleService) notify(ctx context.Context, ride *domain.Ride) {
	if s.notificationService != nil {
		s.notificationService.NotifyRideUpdated(ctx, ride)
	}
}

// mapTransitionError translates store guard failures into service errors.
func mapTransitionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return ErrStaleTransition
	case errors.Is(err, repository.ErrDriverBusy):
		return ErrDriverHasActiveRide
	}
	return err
}
