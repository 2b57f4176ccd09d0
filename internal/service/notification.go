package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/realtime"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideRequested  NotificationType = "RIDE_REQUESTED"
	NotificationDriverAssigned NotificationType = "DRIVER_ASSIGNED"
	NotificationDriverArrived  NotificationType = "DRIVER_ARRIVED"
	NotificationTripStarted    NotificationType = "TRIP_STARTED"
	NotificationTripEnded      NotificationType = "TRIP_ENDED"
	NotificationRideCancelled  NotificationType = "RIDE_CANCELLED"
	NotificationPaymentUpdated NotificationType = "PAYMENT_UPDATED"
	NotificationDriverMoved    NotificationType = "DRIVER_MOVED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	CreatedAt   time.Time
}

// RideSnapshot is the ride payload carried by realtime events.
type RideSnapshot struct {
	ID              string  `json:"id"`
	RiderID         string  `json:"rider_id"`
	DriverID        string  `json:"driver_id,omitempty"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"payment_status,omitempty"`
	PaymentMethod   string  `json:"payment_method"`
	RideType        string  `json:"ride_type"`
	PickupLat       float64 `json:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng"`
	DropoffLat      float64 `json:"dropoff_lat"`
	DropoffLng      float64 `json:"dropoff_lng"`
	FareAmount      int64   `json:"fare_amount"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
}

// LocationSnapshot is the driver position payload carried by realtime events.
type LocationSnapshot struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Heading  float64 `json:"heading"`
	Speed    float64 `json:"speed"`
	RideID   string  `json:"ride_id,omitempty"`
}

func snapshotRide(ride *domain.Ride) RideSnapshot {
	return RideSnapshot{
		ID:              ride.ID,
		RiderID:         ride.RiderID,
		DriverID:        ride.DriverID,
		Status:          string(ride.Status),
		PaymentStatus:   string(ride.PaymentStatus),
		PaymentMethod:   string(ride.PaymentMethod),
		RideType:        string(ride.Class),
		PickupLat:       ride.Pickup.Lat,
		PickupLng:       ride.Pickup.Lng,
		DropoffLat:      ride.Dropoff.Lat,
		DropoffLng:      ride.Dropoff.Lng,
		FareAmount:      ride.FareAmount,
		SurgeMultiplier: ride.SurgeMultiplier,
	}
}

// NotificationService turns state changes into realtime events and
// participant notifications. It runs after the change has committed and
// never fails the caller.
type NotificationService struct {
	publisher realtime.Publisher
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher realtime.Publisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// NotifyRideCreated announces a new pending ride to drivers and the map.
func (s *NotificationService) NotifyRideCreated(ctx context.Context, ride *domain.Ride) {
	s.publish(ctx, realtime.NewEvent(realtime.EventRideCreated, ride.ID, "", snapshotRide(ride)))
	s.send(Notification{
		Type:        NotificationRideRequested,
		RecipientID: realtime.TopicDrivers,
		Title:       "New Ride Request",
		Message:     fmt.Sprintf("New %s ride near (%.4f, %.4f), fare %d", ride.Class, ride.Pickup.Lat, ride.Pickup.Lng, ride.FareAmount),
	})
}

// NotifyRideUpdated publishes the ride's new state and tells the affected
// participant what happened.
func (s *NotificationService) NotifyRideUpdated(ctx context.Context, ride *domain.Ride) {
	s.publish(ctx, realtime.NewEvent(realtime.EventRideUpdated, ride.ID, ride.DriverID, snapshotRide(ride)))

	n := Notification{RecipientID: ride.RiderID}
	switch ride.Status {
	case domain.RideStatusAccepted:
		n.Type, n.Title = NotificationDriverAssigned, "Driver Assigned"
		n.Message = fmt.Sprintf("Driver %s has accepted your ride", ride.DriverID)
	case domain.RideStatusArriving:
		n.Type, n.Title = NotificationDriverArrived, "Driver Arriving"
		n.Message = "Your driver is arriving at the pickup point"
	case domain.RideStatusInProgress:
		n.Type, n.Title = NotificationTripStarted, "Trip Started"
		n.Message = "Your trip has started. Enjoy your ride!"
	case domain.RideStatusCompleted:
		n.Type, n.Title = NotificationTripEnded, "Trip Completed"
		n.Message = fmt.Sprintf("Your trip has ended. Total fare: %d", ride.FareAmount)
	case domain.RideStatusCancelled:
		n.Type, n.Title = NotificationRideCancelled, "Ride Cancelled"
		n.Message = "The ride has been cancelled"
		if ride.CancelReason != "" {
			n.Message += ": " + ride.CancelReason
		}
	default:
		return
	}
	s.send(n)
}

// NotifyPaymentUpdated republishes the ride after its payment status changed.
func (s *NotificationService) NotifyPaymentUpdated(ctx context.Context, ride *domain.Ride, txn *domain.Transaction) {
	s.publish(ctx, realtime.NewEvent(realtime.EventRideUpdated, ride.ID, ride.DriverID, snapshotRide(ride)))
	s.send(Notification{
		Type:        NotificationPaymentUpdated,
		RecipientID: ride.RiderID,
		Title:       "Payment " + string(txn.Status),
		Message:     fmt.Sprintf("Payment %s of %d %s is %s", txn.ID, txn.Amount, txn.Currency, txn.Status),
	})
}

// NotifyDriverMoved publishes a driver's latest position.
func (s *NotificationService) NotifyDriverMoved(ctx context.Context, loc *domain.DriverLocation) {
	s.publish(ctx, realtime.NewEvent(realtime.EventDriverLocationsChanged, loc.RideID, loc.DriverID, LocationSnapshot{
		DriverID: loc.DriverID,
		Lat:      loc.Lat,
		Lng:      loc.Lng,
		Heading:  loc.Heading,
		Speed:    loc.Speed,
		RideID:   loc.RideID,
	}))
}

func (s *NotificationService) publish(ctx context.Context, event realtime.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event)
}

// send logs a participant notification. Push delivery is handled by
// subscribers of the realtime stream.
func (s *NotificationService) send(notification Notification) {
	notification.CreatedAt = time.Now()
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)
}
