package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/realtime"
	"ridecore/internal/service"
)

// ──────────────────────────────────────────────
// 3. RIDE LIFECYCLE
// ──────────────────────────────────────────────

func TestLifecycle_ConcurrentAcceptHasOneWinner(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.addPendingRide("ride-1", "rider-1", 25000, time.Now())

	const drivers = 10
	for i := 0; i < drivers; i++ {
		env.addDriver(fmt.Sprintf("driver-%02d", i), 41.31, 69.28)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		stale   int
		other   []error
	)
	start := make(chan struct{})

	for i := 0; i < drivers; i++ {
		driverID := fmt.Sprintf("driver-%02d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.lifecycle.Accept(context.Background(), "ride-1", driverID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, driverID)
			case errors.Is(err, service.ErrStaleTransition):
				stale++
			default:
				other = append(other, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
	if stale != drivers-1 {
		t.Errorf("expected %d stale losers, got %d", drivers-1, stale)
	}
	if len(other) > 0 {
		t.Errorf("unexpected errors: %v", other)
	}

	ride := env.store.Ride("ride-1")
	if ride.Status != domain.RideStatusAccepted || ride.DriverID != winners[0] {
		t.Errorf("expected ride accepted by %s, got %s/%s", winners[0], ride.Status, ride.DriverID)
	}
}

func TestLifecycle_DriverCannotHoldTwoRides(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	now := time.Now()
	env.addPendingRide("ride-1", "rider-1", 25000, now)
	env.addPendingRide("ride-2", "rider-2", 25000, now)
	env.addDriver("driver-1", 41.31, 69.28)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, rideID := range []string{"ride-1", "ride-2"} {
		i, rideID := i, rideID
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = env.lifecycle.Accept(context.Background(), rideID, "driver-1")
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, service.ErrDriverHasActiveRide):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one accepted ride, got %d", succeeded)
	}
}

func TestLifecycle_AcceptRejectsOfflineDriver(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.addPendingRide("ride-1", "rider-1", 25000, time.Now())
	env.store.AddDriver(&domain.Driver{ID: "driver-1", IsOnline: false})

	_, err := env.lifecycle.Accept(context.Background(), "ride-1", "driver-1")
	if !errors.Is(err, service.ErrDriverOffline) {
		t.Errorf("expected ErrDriverOffline, got %v", err)
	}
	if env.store.AssignCallCount != 0 {
		t.Error("expected no assignment attempt")
	}
}

func TestLifecycle_FullTripWithCash(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	env.addPendingRide("ride-1", "rider-1", 29000, time.Now())
	env.addDriver("driver-1", 41.31, 69.28)

	if _, err := env.lifecycle.Accept(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.lifecycle.MarkArrived(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if _, err := env.lifecycle.StartTrip(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := env.lifecycle.Complete(ctx, "ride-1", "driver-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Ride.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", result.Ride.Status)
	}
	if result.Payment == nil {
		t.Fatal("expected payment to be opened")
	}

	txn := result.Payment.Transaction
	if txn.Amount != 29000 {
		t.Errorf("expected payment of the frozen fare 29000, got %d", txn.Amount)
	}
	if txn.Status != domain.PaymentStatusAwaitingCash {
		t.Errorf("expected awaiting_cash, got %s", txn.Status)
	}
	if result.Ride.PaymentStatus != domain.PaymentStatusAwaitingCash {
		t.Errorf("expected ride payment status awaiting_cash, got %s", result.Ride.PaymentStatus)
	}

	driver := env.store.Driver("driver-1")
	if driver.TotalRides != 1 || driver.TotalEarnings != 29000 {
		t.Errorf("expected earnings recorded, got rides=%d earnings=%d", driver.TotalRides, driver.TotalEarnings)
	}

	// accept, arrive, start, complete, payment opened
	if got := env.publisher.Count(realtime.EventRideUpdated); got != 5 {
		t.Errorf("expected 5 ride updates, got %d", got)
	}

	confirmed, err := env.payments.ConfirmCash(ctx, txn.ID)
	if err != nil {
		t.Fatalf("confirm cash: %v", err)
	}
	if confirmed.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed payment, got %s", confirmed.Status)
	}
	if status := env.store.Ride("ride-1").PaymentStatus; status != domain.PaymentStatusCompleted {
		t.Errorf("expected ride payment completed, got %s", status)
	}
}

func TestLifecycle_CompleteWithOnlinePaymentReturnsCheckout(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	ride := env.addPendingRide("ride-1", "rider-1", 29000, time.Now())
	ride.PaymentMethod = domain.PaymentMethodClick
	ride.Status = domain.RideStatusInProgress
	ride.DriverID = "driver-1"
	env.store.AddRide(ride)
	env.addDriver("driver-1", 41.31, 69.28)

	result, err := env.lifecycle.Complete(ctx, "ride-1", "driver-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Payment == nil || result.Payment.Checkout == nil {
		t.Fatal("expected checkout")
	}
	if result.Payment.Transaction.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending, got %s", result.Payment.Transaction.Status)
	}
	if result.Payment.Checkout.RedirectURL == "" {
		t.Error("expected redirect URL")
	}
}

func TestLifecycle_CompleteSurvivesProviderOutage(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.card.CheckoutError = errProviderDown
	ride := env.addPendingRide("ride-1", "rider-1", 29000, time.Now())
	ride.PaymentMethod = domain.PaymentMethodClick
	ride.Status = domain.RideStatusInProgress
	ride.DriverID = "driver-1"
	env.store.AddRide(ride)
	env.addDriver("driver-1", 41.31, 69.28)

	result, err := env.lifecycle.Complete(context.Background(), "ride-1", "driver-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Payment == nil || result.Payment.Checkout != nil {
		t.Fatalf("expected transaction without checkout, got %+v", result.Payment)
	}
	if env.store.Ride("ride-1").Status != domain.RideStatusCompleted {
		t.Error("expected ride to stay completed")
	}
}

func TestLifecycle_FreeRideIsSettledOnCompletion(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ride := env.addPendingRide("ride-1", "rider-1", 0, time.Now())
	ride.Status = domain.RideStatusInProgress
	ride.DriverID = "driver-1"
	env.store.AddRide(ride)
	env.addDriver("driver-1", 41.31, 69.28)

	result, err := env.lifecycle.Complete(context.Background(), "ride-1", "driver-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Payment != nil {
		t.Error("expected no payment for a free ride")
	}
	if env.store.Ride("ride-1").PaymentStatus != domain.PaymentStatusCompleted {
		t.Error("expected free ride to be marked paid")
	}
	if env.store.TransactionCreateCount != 0 {
		t.Error("expected no transaction")
	}
}

func TestLifecycle_GuardsDriverAndOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	env.addPendingRide("ride-1", "rider-1", 25000, time.Now())
	env.addDriver("driver-1", 41.31, 69.28)
	env.addDriver("driver-2", 41.31, 69.28)

	if _, err := env.lifecycle.Accept(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := env.lifecycle.MarkArrived(ctx, "ride-1", "driver-2"); !errors.Is(err, service.ErrDriverNotAssignedToRide) {
		t.Errorf("expected ErrDriverNotAssignedToRide, got %v", err)
	}
	if _, err := env.lifecycle.StartTrip(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("expected ErrStaleTransition when skipping arrival, got %v", err)
	}
	if _, err := env.lifecycle.Complete(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("expected ErrStaleTransition completing an accepted ride, got %v", err)
	}
	if _, err := env.lifecycle.MarkArrived(ctx, "ride-1", ""); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
}

func TestLifecycle_DriverMovesAfterRiderCancelAreStale(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	env.addPendingRide("ride-1", "rider-1", 25000, time.Now())
	env.addDriver("driver-1", 41.31, 69.28)

	if _, err := env.lifecycle.Accept(ctx, "ride-1", "driver-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "rider-1"}); err != nil {
		t.Fatalf("rider cancel: %v", err)
	}

	// The driver's app still shows the ride; every move must read as stale.
	if _, err := env.lifecycle.MarkArrived(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("arrive: expected ErrStaleTransition, got %v", err)
	}
	if _, err := env.lifecycle.StartTrip(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("start: expected ErrStaleTransition, got %v", err)
	}
	if _, err := env.lifecycle.Complete(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("complete: expected ErrStaleTransition, got %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "driver-1"}); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("cancel: expected ErrStaleTransition, got %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "someone"}); !errors.Is(err, service.ErrStaleTransition) {
		t.Errorf("stranger cancel of a finished ride: expected ErrStaleTransition, got %v", err)
	}
}

func TestLifecycle_CancelPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rider cancels pending", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		env.addPendingRide("ride-1", "rider-1", 25000, time.Now())

		ride, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "rider-1", Reason: "changed plans"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ride.Status != domain.RideStatusCancelled || ride.CancelReason != "changed plans" {
			t.Errorf("unexpected ride: %+v", ride)
		}

		_, err = env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "rider-1"})
		if !errors.Is(err, service.ErrStaleTransition) {
			t.Errorf("expected ErrStaleTransition on repeat cancel, got %v", err)
		}
	})

	t.Run("driver cancels accepted and is released", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		now := time.Now()
		env.addPendingRide("ride-1", "rider-1", 25000, now)
		env.addPendingRide("ride-2", "rider-2", 25000, now)
		env.addDriver("driver-1", 41.31, 69.28)

		if _, err := env.lifecycle.Accept(ctx, "ride-1", "driver-1"); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if _, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "driver-1"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if env.store.Ride("ride-1").DriverID != "" {
			t.Error("expected driver to be released from the ride")
		}
		if _, err := env.lifecycle.Accept(ctx, "ride-2", "driver-1"); err != nil {
			t.Errorf("expected released driver to accept again, got %v", err)
		}
	})

	t.Run("cannot cancel once arriving", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		ride := env.addPendingRide("ride-1", "rider-1", 25000, time.Now())
		ride.Status = domain.RideStatusArriving
		ride.DriverID = "driver-1"
		env.store.AddRide(ride)

		_, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "rider-1"})
		if !errors.Is(err, service.ErrCancellationNotAllowed) {
			t.Errorf("expected ErrCancellationNotAllowed, got %v", err)
		}
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		env.addPendingRide("ride-1", "rider-1", 25000, time.Now())

		_, err := env.lifecycle.Cancel(ctx, service.CancelRideRequest{RideID: "ride-1", CancelledBy: "someone"})
		if !errors.Is(err, service.ErrNotRideParticipant) {
			t.Errorf("expected ErrNotRideParticipant, got %v", err)
		}
	})
}
