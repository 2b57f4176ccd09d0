package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	store    repository.Store
	fare     *FareCalculator
	currency string
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(store repository.Store, fare *FareCalculator, currency string) *ReceiptService {
	if currency == "" {
		currency = defaultCurrency
	}
	return &ReceiptService{
		store:    store,
		fare:     fare,
		currency: currency,
	}
}

// GenerateReceipt builds the receipt for a completed ride. The breakdown is
// recomputed from the stored trip metrics; the total is the frozen fare.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, rideID string) (*domain.Receipt, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.store.Rides().GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	receipt := &domain.Receipt{
		ID:              receiptID(ride.ID),
		RideID:          ride.ID,
		RiderID:         ride.RiderID,
		DriverID:        ride.DriverID,
		Pickup:          ride.Pickup,
		Dropoff:         ride.Dropoff,
		Class:           ride.Class,
		DistanceKm:      math.Round(float64(ride.DistanceMeters)/100) / 10,
		DurationMin:     int64(math.Round(float64(ride.DurationSeconds) / 60)),
		Fare:            ride.Fare,
		SurgeMultiplier: ride.SurgeMultiplier,
		DiscountAmount:  ride.DiscountAmount,
		TotalFare:       ride.FareAmount,
		Currency:        s.currency,
		PaymentMethod:   ride.PaymentMethod,
		PaymentStatus:   ride.PaymentStatus,
		CompletedAt:     ride.UpdatedAt,
		CreatedAt:       time.Now(),
	}

	transactions, err := s.store.Transactions().ListByRide(ctx, ride.ID)
	if err != nil {
		return nil, err
	}
	if n := len(transactions); n > 0 {
		latest := transactions[n-1]
		receipt.TransactionID = latest.ID
		receipt.PaymentStatus = latest.Status
		receipt.Currency = latest.Currency
	}
	if receipt.PaymentStatus == "" {
		receipt.PaymentStatus = domain.PaymentStatusPending
	}

	if s.fare != nil {
		breakdown, err := s.fare.ComputeForClass(ride.DistanceMeters, ride.DurationSeconds, ride.Class, ride.SurgeMultiplier)
		if err == nil {
			receipt.Fare = breakdown
		}
	}

	return receipt, nil
}

func receiptID(rideID string) string {
	id := strings.ReplaceAll(rideID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "RCP-" + strings.ToUpper(id)
}

// FormatReceipt formats the receipt as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := strings.Repeat("-", 37)

	b.WriteString("=====================================\n")
	b.WriteString("            RIDE RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Ride ID:    %s\n", receipt.RideID)
	fmt.Fprintf(&b, "Date:       %s\n\n", receipt.CompletedAt.Format("Jan 02, 2006 3:04 PM"))

	b.WriteString("TRIP DETAILS\n" + line + "\n")
	fmt.Fprintf(&b, "Pickup:   %s\n", formatLocation(receipt.Pickup))
	fmt.Fprintf(&b, "Dropoff:  %s\n", formatLocation(receipt.Dropoff))
	fmt.Fprintf(&b, "Class:    %s\n", receipt.Class)
	fmt.Fprintf(&b, "Distance: %.1f km\n", receipt.DistanceKm)
	fmt.Fprintf(&b, "Duration: %d min\n\n", receipt.DurationMin)

	b.WriteString("FARE BREAKDOWN\n" + line + "\n")
	fmt.Fprintf(&b, "Base fare:     %s\n", formatAmount(receipt.Fare.Base, receipt.Currency))
	fmt.Fprintf(&b, "Distance:      %s\n", formatAmount(receipt.Fare.DistanceFare, receipt.Currency))
	fmt.Fprintf(&b, "Time:          %s\n", formatAmount(receipt.Fare.TimeFare, receipt.Currency))
	if receipt.SurgeMultiplier > 1 {
		fmt.Fprintf(&b, "Surge:         x%.2f\n", receipt.SurgeMultiplier)
	}
	if receipt.DiscountAmount > 0 {
		fmt.Fprintf(&b, "Discount:     -%s\n", formatAmount(receipt.DiscountAmount, receipt.Currency))
	}
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "TOTAL:         %s\n\n", formatAmount(receipt.TotalFare, receipt.Currency))

	b.WriteString("PAYMENT\n" + line + "\n")
	fmt.Fprintf(&b, "Method: %s\n", receipt.PaymentMethod)
	fmt.Fprintf(&b, "Status: %s\n", receipt.PaymentStatus)
	if receipt.TransactionID != "" {
		fmt.Fprintf(&b, "Ref:    %s\n", receipt.TransactionID)
	}

	b.WriteString("\n=====================================\n")
	b.WriteString("     Thank you for riding with us!\n")
	b.WriteString("=====================================\n")
	return b.String()
}

func formatLocation(loc domain.Location) string {
	if loc.Address != "" {
		return loc.Address
	}
	return fmt.Sprintf("(%.5f, %.5f)", loc.Lat, loc.Lng)
}

func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%d %s", amount, currency)
}
