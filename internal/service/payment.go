package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ridecore/internal/domain"
	"ridecore/internal/payment"
	"ridecore/internal/repository"
)

const (
	maxCallbackAttempts = 3
	defaultCurrency     = "UZS"
)

// PaymentService reconciles ride payments with provider callbacks.
type PaymentService struct {
	store               repository.Store
	providers           *payment.Registry
	currency            string
	notificationService *NotificationService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	store repository.Store,
	providers *payment.Registry,
	currency string,
	notificationService *NotificationService,
) *PaymentService {
	if currency == "" {
		currency = defaultCurrency
	}
	return &PaymentService{
		store:               store,
		providers:           providers,
		currency:            currency,
		notificationService: notificationService,
	}
}

// BeginPaymentRequest contains the parameters for opening a payment.
type BeginPaymentRequest struct {
	RideID string
	Amount int64                // zero uses the ride's fare
	Method domain.PaymentMethod // empty uses the ride's method
}

// BeginPaymentResult contains the new transaction and, for online methods,
// where to send the rider.
type BeginPaymentResult struct {
	Transaction *domain.Transaction
	Checkout    *payment.Checkout // nil if the provider could not be reached
}

// BeginPayment opens a new payment attempt for a ride. Earlier open
// attempts are cancelled in the same transaction.
func (s *PaymentService) BeginPayment(ctx context.Context, req BeginPaymentRequest) (*BeginPaymentResult, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Amount < 0 {
		return nil, ErrInvalidPaymentAmount
	}

	ride, err := s.store.Rides().GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	// The charge is always the frozen fare; zero means "use the fare".
	if req.Amount == 0 {
		req.Amount = ride.FareAmount
	}
	if req.Amount != ride.FareAmount || req.Amount == 0 {
		return nil, ErrInvalidPaymentAmount
	}

	method := req.Method
	if method == "" {
		method = ride.PaymentMethod
	}
	provider, err := s.providers.Get(method)
	if err != nil {
		return nil, ErrInvalidPaymentMethod
	}

	status := domain.PaymentStatusPending
	if method == domain.PaymentMethodCash {
		status = domain.PaymentStatusAwaitingCash
	}

	now := time.Now()
	txn := &domain.Transaction{
		ID:            uuid.New().String(),
		RideID:        ride.ID,
		UserID:        ride.RiderID,
		Amount:        req.Amount,
		Currency:      s.currency,
		PaymentMethod: method,
		Status:        status,
		Type:          domain.TransactionTypeRidePayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Transactions().ListByRide(ctx, ride.ID)
		if err != nil {
			return err
		}

		for _, t := range existing {
			if t.Status == domain.PaymentStatusCompleted {
				return ErrDuplicatePayment
			}
		}
		for _, t := range existing {
			if !t.Status.IsOpen() {
				continue
			}
			if err := tx.Transactions().Transition(ctx, t.ID, t.Status, domain.PaymentStatusCancelled, "", now); err != nil {
				return fmt.Errorf("failed to supersede transaction %s: %w", t.ID, err)
			}
		}

		if err := tx.Transactions().Create(ctx, txn); err != nil {
			return err
		}
		return tx.Rides().UpdatePaymentStatus(ctx, ride.ID, status, now)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrStaleTransition
		}
		return nil, err
	}

	log.Printf("[PAYMENT] opened tx=%s ride=%s method=%s amount=%d status=%s", txn.ID, ride.ID, method, txn.Amount, status)

	ride.PaymentStatus = status
	if s.notificationService != nil {
		s.notificationService.NotifyPaymentUpdated(ctx, ride, txn)
	}

	checkout, err := provider.Checkout(ctx, payment.CheckoutRequest{
		TransactionID: txn.ID,
		RideID:        ride.ID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
	})
	if err != nil {
		// The transaction stays pending; the rider can retry and supersede it.
		log.Printf("[PAYMENT] checkout failed tx=%s provider=%s: %v", txn.ID, method, err)
		return &BeginPaymentResult{Transaction: txn}, nil
	}

	return &BeginPaymentResult{
		Transaction: txn,
		Checkout:    checkout,
	}, nil
}

// ApplyCallback records a provider's verdict on a transaction. Repeated
// callbacks are idempotent; contradictory ones are rejected.
func (s *PaymentService) ApplyCallback(ctx context.Context, txID string, outcome payment.Outcome, externalRef string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, ErrInvalidTransactionID
	}
	if !outcome.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	for attempt := 1; attempt <= maxCallbackAttempts; attempt++ {
		txn, err := s.store.Transactions().GetByID(ctx, txID)
		if err != nil {
			return nil, err
		}

		next, changed, err := decideCallback(txn.Status, outcome)
		if err != nil {
			log.Printf("[PAYMENT] inconsistent callback tx=%s recorded=%s reported=%s ref=%s", txID, txn.Status, outcome, externalRef)
			return nil, err
		}
		if !changed {
			return txn, nil
		}

		err = s.settle(ctx, txn, next, externalRef)
		if errors.Is(err, repository.ErrStaleState) {
			log.Printf("[PAYMENT] tx=%s changed concurrently, retrying (%d/%d)", txID, attempt, maxCallbackAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("[PAYMENT] tx=%s %s -> %s ref=%s", txID, txn.Status, next, externalRef)
		txn.Status = next
		if externalRef != "" {
			txn.ExternalID = externalRef
		}
		s.notifyPayment(ctx, txn)
		return txn, nil
	}

	return nil, ErrStaleTransition
}

// decideCallback returns the status a transaction moves to when a provider
// reports outcome, or changed=false when the callback is a repeat.
func decideCallback(current domain.PaymentStatus, outcome payment.Outcome) (next domain.PaymentStatus, changed bool, err error) {
	switch current {
	case domain.PaymentStatusCompleted:
		if outcome == payment.OutcomeSuccess {
			return current, false, nil
		}
		return "", false, ErrInconsistentCallback

	case domain.PaymentStatusPending:
		switch outcome {
		case payment.OutcomeSuccess:
			return domain.PaymentStatusCompleted, true, nil
		case payment.OutcomeFailed:
			return domain.PaymentStatusFailed, true, nil
		case payment.OutcomeCancelled:
			return domain.PaymentStatusCancelled, true, nil
		}

	case domain.PaymentStatusFailed:
		switch outcome {
		case payment.OutcomeSuccess:
			return domain.PaymentStatusCompleted, true, nil
		case payment.OutcomeFailed:
			return current, false, nil
		}

	case domain.PaymentStatusCancelled:
		if outcome == payment.OutcomeCancelled {
			return current, false, nil
		}
	}

	return "", false, ErrInconsistentCallback
}

// ConfirmCash records that the driver received cash.
func (s *PaymentService) ConfirmCash(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, ErrInvalidTransactionID
	}

	txn, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.PaymentStatusAwaitingCash {
		return nil, ErrPaymentNotAwaitingCash
	}

	if err := s.settle(ctx, txn, domain.PaymentStatusCompleted, ""); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrPaymentNotAwaitingCash
		}
		return nil, err
	}

	log.Printf("[PAYMENT] cash confirmed tx=%s ride=%s amount=%d", txn.ID, txn.RideID, txn.Amount)
	txn.Status = domain.PaymentStatusCompleted
	s.notifyPayment(ctx, txn)
	return txn, nil
}

// settle moves a transaction and mirrors the result onto its ride in one
// database transaction.
func (s *PaymentService) settle(ctx context.Context, txn *domain.Transaction, next domain.PaymentStatus, externalRef string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		now := time.Now()
		if err := tx.Transactions().Transition(ctx, txn.ID, txn.Status, next, externalRef, now); err != nil {
			return err
		}
		return tx.Rides().UpdatePaymentStatus(ctx, txn.RideID, next, now)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicatePayment
	}
	return err
}

// GetTransaction retrieves a transaction by ID.
func (s *PaymentService) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, ErrInvalidTransactionID
	}
	return s.store.Transactions().GetByID(ctx, txID)
}

// ListForRide retrieves every payment attempt for a ride, oldest first.
func (s *PaymentService) ListForRide(ctx context.Context, rideID string) ([]*domain.Transaction, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if _, err := s.store.Rides().GetByID(ctx, rideID); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListByRide(ctx, rideID)
}

func (s *PaymentService) notifyPayment(ctx context.Context, txn *domain.Transaction) {
	if s.notificationService == nil {
		return
	}
	ride, err := s.store.Rides().GetByID(ctx, txn.RideID)
	if err != nil {
		log.Printf("[PAYMENT] could not load ride %s for notification: %v", txn.RideID, err)
		return
	}
	s.notificationService.NotifyPaymentUpdated(ctx, ride, txn)
}
