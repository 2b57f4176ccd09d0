package handler

import (
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/payment"
	"ridecore/internal/service"
)

const timeLayout = time.RFC3339

// LocationDTO is a point on the map in request and response bodies.
type LocationDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (l LocationDTO) toDomain() domain.Location {
	return domain.Location{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

func newLocationDTO(l domain.Location) LocationDTO {
	return LocationDTO{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

// FareDTO is the fare breakdown.
type FareDTO struct {
	Base         int64 `json:"base_fare"`
	DistanceFare int64 `json:"distance_fare"`
	TimeFare     int64 `json:"time_fare"`
	Total        int64 `json:"total"`
}

func newFareDTO(f domain.FareBreakdown) FareDTO {
	return FareDTO{Base: f.Base, DistanceFare: f.DistanceFare, TimeFare: f.TimeFare, Total: f.Total}
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID              string      `json:"id"`
	RiderID         string      `json:"rider_id"`
	DriverID        string      `json:"driver_id,omitempty"`
	Pickup          LocationDTO `json:"pickup"`
	Dropoff         LocationDTO `json:"dropoff"`
	RideType        string      `json:"ride_type"`
	DistanceMeters  int64       `json:"distance_meters"`
	DurationSeconds int64       `json:"duration_seconds"`
	Fare            FareDTO     `json:"fare"`
	PromoCode       string      `json:"promo_code,omitempty"`
	DiscountAmount  int64       `json:"discount_amount"`
	FareAmount      int64       `json:"fare_amount"`
	SurgeMultiplier float64     `json:"surge_multiplier"`
	SurgeActive     bool        `json:"surge_active"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentStatus   string      `json:"payment_status,omitempty"`
	Status          string      `json:"status"`
	CancelReason    string      `json:"cancel_reason,omitempty"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
}

func newRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:              r.ID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		Pickup:          newLocationDTO(r.Pickup),
		Dropoff:         newLocationDTO(r.Dropoff),
		RideType:        string(r.Class),
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
		Fare:            newFareDTO(r.Fare),
		PromoCode:       r.PromoCode,
		DiscountAmount:  r.DiscountAmount,
		FareAmount:      r.FareAmount,
		SurgeMultiplier: r.SurgeMultiplier,
		SurgeActive:     r.SurgeMultiplier > 1.0,
		PaymentMethod:   string(r.PaymentMethod),
		PaymentStatus:   string(r.PaymentStatus),
		Status:          string(r.Status),
		CancelReason:    r.CancelReason,
		CreatedAt:       r.CreatedAt.Format(timeLayout),
		UpdatedAt:       r.UpdatedAt.Format(timeLayout),
	}
}

func newRideResponses(rides []*domain.Ride) []RideResponse {
	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, newRideResponse(r))
	}
	return response
}

// QuoteResponse is the HTTP representation of a priced trip.
type QuoteResponse struct {
	RideType        string  `json:"ride_type"`
	DistanceMeters  int64   `json:"distance_meters"`
	DurationSeconds int64   `json:"duration_seconds"`
	RouteEstimated  bool    `json:"route_estimated"`
	Polyline        string  `json:"polyline,omitempty"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Fare            FareDTO `json:"fare"`
	PromoCode       string  `json:"promo_code,omitempty"`
	DiscountAmount  int64   `json:"discount_amount"`
	Total           int64   `json:"total"`
}

func newQuoteResponse(q *service.Quote) *QuoteResponse {
	if q == nil {
		return nil
	}
	return &QuoteResponse{
		RideType:        string(q.Class),
		DistanceMeters:  q.DistanceMeters,
		DurationSeconds: q.DurationSeconds,
		RouteEstimated:  q.RouteEstimated,
		Polyline:        q.Polyline,
		SurgeMultiplier: q.SurgeMultiplier,
		Fare:            newFareDTO(q.Fare),
		PromoCode:       q.PromoCode,
		DiscountAmount:  q.Discount,
		Total:           q.Total,
	}
}

// TransactionResponse is the HTTP representation of a payment attempt.
type TransactionResponse struct {
	ID            string `json:"id"`
	RideID        string `json:"ride_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	ExternalID    string `json:"external_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID,
		RideID:        t.RideID,
		UserID:        t.UserID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		PaymentMethod: string(t.PaymentMethod),
		Status:        string(t.Status),
		Type:          t.Type,
		ExternalID:    t.ExternalID,
		CreatedAt:     t.CreatedAt.Format(timeLayout),
		UpdatedAt:     t.UpdatedAt.Format(timeLayout),
	}
}

// CheckoutResponse tells the client where to complete an online payment.
type CheckoutResponse struct {
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirect_url,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Simulated   bool   `json:"simulated"`
	Message     string `json:"message,omitempty"`
}

// PaymentResponse is a new payment attempt with its checkout.
type PaymentResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Checkout    *CheckoutResponse   `json:"checkout,omitempty"`
}

func newPaymentResponse(result *service.BeginPaymentResult) *PaymentResponse {
	if result == nil {
		return nil
	}
	return &PaymentResponse{
		Transaction: newTransactionResponse(result.Transaction),
		Checkout:    newCheckoutResponse(result.Checkout),
	}
}

func newCheckoutResponse(c *payment.Checkout) *CheckoutResponse {
	if c == nil {
		return nil
	}
	return &CheckoutResponse{
		Provider:    string(c.Provider),
		RedirectURL: c.RedirectURL,
		SessionID:   c.SessionID,
		Simulated:   c.Simulated,
		Message:     c.Message,
	}
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	IsOnline      bool         `json:"is_online"`
	Position      *LocationDTO `json:"position,omitempty"`
	Heading       float64      `json:"heading"`
	Rating        float64      `json:"rating"`
	CarBrand      string       `json:"car_brand"`
	CarModel      string       `json:"car_model"`
	CarPlate      string       `json:"car_plate"`
	CarColor      string       `json:"car_color"`
	TotalRides    int64        `json:"total_rides"`
	TotalEarnings int64        `json:"total_earnings"`
	UpdatedAt     string       `json:"updated_at"`
}

func newDriverResponse(d *domain.Driver) DriverResponse {
	resp := DriverResponse{
		ID:            d.ID,
		UserID:        d.UserID,
		IsOnline:      d.IsOnline,
		Heading:       d.Heading,
		Rating:        d.Rating,
		CarBrand:      d.Vehicle.Brand,
		CarModel:      d.Vehicle.Model,
		CarPlate:      d.Vehicle.Plate,
		CarColor:      d.Vehicle.Color,
		TotalRides:    d.TotalRides,
		TotalEarnings: d.TotalEarnings,
		UpdatedAt:     d.UpdatedAt.Format(timeLayout),
	}
	if d.HasPosition {
		resp.Position = &LocationDTO{Lat: d.Lat, Lng: d.Lng}
	}
	return resp
}

// DriverLocationResponse is one position sample.
type DriverLocationResponse struct {
	ID         string  `json:"id"`
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	RideID     string  `json:"ride_id,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

func newDriverLocationResponse(l *domain.DriverLocation) DriverLocationResponse {
	return DriverLocationResponse{
		ID:         l.ID,
		DriverID:   l.DriverID,
		Lat:        l.Lat,
		Lng:        l.Lng,
		Heading:    l.Heading,
		Speed:      l.Speed,
		RideID:     l.RideID,
		RecordedAt: l.RecordedAt.Format(timeLayout),
	}
}

// PromoResponse is the HTTP representation of a promo code.
type PromoResponse struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	MaxDiscount   *int64 `json:"max_discount,omitempty"`
	UsageLimit    *int64 `json:"usage_limit,omitempty"`
	UsedCount     int64  `json:"used_count"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

func newPromoResponse(p *domain.PromoCode) PromoResponse {
	return PromoResponse{
		Code:          p.Code,
		DiscountType:  string(p.DiscountType),
		DiscountValue: p.DiscountValue,
		MaxDiscount:   p.MaxDiscount,
		UsageLimit:    p.UsageLimit,
		UsedCount:     p.UsedCount,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt.Format(timeLayout),
	}
}

// ProfileResponse is the HTTP representation of a profile.
type ProfileResponse struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at"`
}

func newProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:         p.ID,
		FullName:   p.FullName,
		Phone:      p.Phone,
		Role:       string(p.Role),
		IsVerified: p.IsVerified,
		CreatedAt:  p.CreatedAt.Format(timeLayout),
	}
}

// ReceiptResponse is the HTTP representation of a receipt.
type ReceiptResponse struct {
	ID              string      `json:"id"`
	RideID          string      `json:"ride_id"`
	RiderID         string      `json:"rider_id"`
	DriverID        string      `json:"driver_id"`
	Pickup          LocationDTO `json:"pickup"`
	Dropoff         LocationDTO `json:"dropoff"`
	RideType        string      `json:"ride_type"`
	DistanceKm      float64     `json:"distance_km"`
	DurationMin     int64       `json:"duration_min"`
	Fare            FareDTO     `json:"fare"`
	SurgeMultiplier float64     `json:"surge_multiplier"`
	DiscountAmount  int64       `json:"discount_amount"`
	TotalFare       int64       `json:"total_fare"`
	Currency        string      `json:"currency"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentStatus   string      `json:"payment_status"`
	TransactionID   string      `json:"transaction_id,omitempty"`
	CompletedAt     string      `json:"completed_at"`
	CreatedAt       string      `json:"created_at"`
}

func newReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:              r.ID,
		RideID:          r.RideID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		Pickup:          newLocationDTO(r.Pickup),
		Dropoff:         newLocationDTO(r.Dropoff),
		RideType:        string(r.Class),
		DistanceKm:      r.DistanceKm,
		DurationMin:     r.DurationMin,
		Fare:            newFareDTO(r.Fare),
		SurgeMultiplier: r.SurgeMultiplier,
		DiscountAmount:  r.DiscountAmount,
		TotalFare:       r.TotalFare,
		Currency:        r.Currency,
		PaymentMethod:   string(r.PaymentMethod),
		PaymentStatus:   string(r.PaymentStatus),
		TransactionID:   r.TransactionID,
		CompletedAt:     r.CompletedAt.Format(timeLayout),
		CreatedAt:       r.CreatedAt.Format(timeLayout),
	}
}
