package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// ──────────────────────────────────────────────
// 7. RECEIPTS
// ──────────────────────────────────────────────

const receiptRideID = "3f2a9c1e-7b4d-4e8a-9c2b-1d5e6f7a8b9c"

func TestReceipt_ForCompletedRide(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.completedRide(receiptRideID, 26500, domain.PaymentMethodCash)
	ride := env.store.Ride(receiptRideID)
	ride.DiscountAmount = 2500
	ride.PromoCode = "WELCOME10"
	env.store.AddRide(ride)

	txn := env.openPayment(t, receiptRideID)

	receipt, err := env.receipts.GenerateReceipt(context.Background(), receiptRideID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.ID != "RCP-3F2A9C1E" {
		t.Errorf("unexpected receipt id %s", receipt.ID)
	}
	if receipt.DistanceKm != 6.0 || receipt.DurationMin != 12 {
		t.Errorf("unexpected trip metrics: %.1f km %d min", receipt.DistanceKm, receipt.DurationMin)
	}
	want := domain.FareBreakdown{Base: 5000, DistanceFare: 18000, TimeFare: 6000, Total: 29000}
	if receipt.Fare != want {
		t.Errorf("expected breakdown %+v, got %+v", want, receipt.Fare)
	}
	if receipt.TotalFare != 26500 || receipt.DiscountAmount != 2500 {
		t.Errorf("expected frozen total 26500 with discount 2500, got %d/%d", receipt.TotalFare, receipt.DiscountAmount)
	}
	if receipt.TransactionID != txn.ID || receipt.PaymentStatus != domain.PaymentStatusAwaitingCash {
		t.Errorf("expected latest transaction on receipt, got %s/%s", receipt.TransactionID, receipt.PaymentStatus)
	}
	if receipt.Currency != "UZS" {
		t.Errorf("expected UZS, got %s", receipt.Currency)
	}
}

func TestReceipt_WithoutPaymentIsPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.completedRide("ride-1", 29000, domain.PaymentMethodCash)

	receipt, err := env.receipts.GenerateReceipt(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.PaymentStatus != domain.PaymentStatusPending || receipt.TransactionID != "" {
		t.Errorf("expected pending receipt without transaction, got %+v", receipt)
	}
	if receipt.ID != "RCP-RIDE1" {
		t.Errorf("unexpected receipt id %s", receipt.ID)
	}
}

func TestReceipt_RequiresCompletedRide(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.addPendingRide("ride-1", "rider-1", 25000, time.Now())

	_, err := env.receipts.GenerateReceipt(context.Background(), "ride-1")
	if !errors.Is(err, service.ErrRideNotCompleted) {
		t.Errorf("expected ErrRideNotCompleted, got %v", err)
	}
	if _, err := env.receipts.GenerateReceipt(context.Background(), ""); !errors.Is(err, service.ErrInvalidRideID) {
		t.Errorf("expected ErrInvalidRideID, got %v", err)
	}
}

func TestReceipt_FormatText(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	receipt := &domain.Receipt{
		ID:              "RCP-ABCDEF12",
		RideID:          "ride-1",
		Pickup:          centre,
		Dropoff:         domain.Location{Lat: 41.2579, Lng: 69.2812},
		Class:           domain.RideClassComfort,
		DistanceKm:      6.2,
		DurationMin:     14,
		Fare:            domain.FareBreakdown{Base: 5000, DistanceFare: 18600, TimeFare: 7000, Total: 45900},
		SurgeMultiplier: 1.25,
		DiscountAmount:  5000,
		TotalFare:       40900,
		Currency:        "UZS",
		PaymentMethod:   domain.PaymentMethodClick,
		PaymentStatus:   domain.PaymentStatusCompleted,
		TransactionID:   "tx-1",
		CompletedAt:     time.Date(2026, 3, 14, 18, 5, 0, 0, time.UTC),
	}

	text := env.receipts.FormatReceipt(receipt)

	for _, want := range []string{
		"Receipt ID: RCP-ABCDEF12",
		"Pickup:   Amir Temur Square",
		"Dropoff:  (41.25790, 69.28120)",
		"Distance: 6.2 km",
		"Surge:         x1.25",
		"Discount:     -5000 UZS",
		"TOTAL:         40900 UZS",
		"Ref:    tx-1",
		"Mar 14, 2026 6:05 PM",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected receipt to contain %q\n%s", want, text)
		}
	}
}
