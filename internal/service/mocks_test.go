package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/payment"
	"ridecore/internal/realtime"
	"ridecore/internal/redis"
	"ridecore/internal/repository/memory"
	"ridecore/internal/service"
)

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of redis.LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	// Counters for verification
	UpdateCallCount int32
	RemoveCallCount int32

	// Error injection
	FindError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.DriverLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []redis.DriverLocation
	for _, loc := range m.locations {
		d := distanceKm(lat, lng, loc.Lat, loc.Lng)
		if d <= radiusKm {
			loc.DistanceKm = d
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.RemoveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// Has reports whether a driver is indexed.
func (m *MockLocationStore) Has(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// distanceKm is a flat approximation good enough for city-scale fixtures.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * 111.0
	dLng := (lng2 - lng1) * 85.0
	if dLat < 0 {
		dLat = -dLat
	}
	if dLng < 0 {
		dLng = -dLng
	}
	if dLat > dLng {
		return dLat
	}
	return dLng
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of redis.LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

// Hold marks the lock for rideID as taken by another process.
func (m *MockLockStore) Hold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[rideID] = "other-instance"
}

func (m *MockLockStore) AcquireMatchLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	n := atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[rideID]; held {
		return "", false, nil
	}
	token := rideID + "-token-" + string(rune('a'+n%26))
	m.locks[rideID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseMatchLock(ctx context.Context, rideID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[rideID] == token {
		delete(m.locks, rideID)
	}
	return nil
}

// IsHeld reports whether anyone holds the lock for rideID.
func (m *MockLockStore) IsHeld(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[rideID]
	return held
}

// ──────────────────────────────────────────────
// MOCK PROMO CACHE
// ──────────────────────────────────────────────

// MockPromoCache is a mock implementation of redis.PromoCacheInterface.
type MockPromoCache struct {
	mu     sync.Mutex
	promos map[string]*redis.CachedPromo

	// Counters for verification
	GetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockPromoCache creates a new mock promo cache.
func NewMockPromoCache() *MockPromoCache {
	return &MockPromoCache{promos: make(map[string]*redis.CachedPromo)}
}

func (m *MockPromoCache) GetPromo(ctx context.Context, code string) (*redis.CachedPromo, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promos[code], nil
}

func (m *MockPromoCache) SetPromo(ctx context.Context, promo *redis.CachedPromo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[promo.Code] = promo
	return nil
}

func (m *MockPromoCache) InvalidatePromo(ctx context.Context, code string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.promos, code)
	return nil
}

func (m *MockPromoCache) WarmPromos(ctx context.Context, promos []*domain.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range promos {
		m.promos[p.Code] = redis.NewCachedPromo(p)
	}
	return nil
}

// Cached reports whether code is in the cache.
func (m *MockPromoCache) Cached(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.promos[code]
	return ok
}

// ──────────────────────────────────────────────
// RECORDING PUBLISHER
// ──────────────────────────────────────────────

// RecordingPublisher collects published realtime events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *RecordingPublisher) Publish(ctx context.Context, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

// Count returns how many events of typ were published.
func (p *RecordingPublisher) Count(typ realtime.EventType) int {
	n := 0
	for _, e := range p.Events() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK PAYMENT PROVIDER
// ──────────────────────────────────────────────

var errProviderDown = errors.New("provider down")

// MockProvider is a payment.Provider with call counting and error injection.
type MockProvider struct {
	method domain.PaymentMethod

	CheckoutCallCount int32
	CheckoutError     error
}

func (p *MockProvider) Method() domain.PaymentMethod { return p.method }

func (p *MockProvider) Checkout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	atomic.AddInt32(&p.CheckoutCallCount, 1)
	if p.CheckoutError != nil {
		return nil, p.CheckoutError
	}
	return &payment.Checkout{
		Provider:    p.method,
		RedirectURL: "https://pay.example.com/" + req.TransactionID,
	}, nil
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// Tashkent city centre and nearby points.
var (
	centre  = domain.Location{Lat: 41.3111, Lng: 69.2797, Address: "Amir Temur Square"}
	airport = domain.Location{Lat: 41.2579, Lng: 69.2812, Address: "Tashkent Airport"}
)

// testEnv wires every service over one memory store.
type testEnv struct {
	store     *memory.Store
	publisher *RecordingPublisher
	locations *MockLocationStore
	locks     *MockLockStore
	card      *MockProvider

	fare      *service.FareCalculator
	promos    *service.PromoService
	payments  *service.PaymentService
	lifecycle *service.LifecycleService
	matching  *service.MatchingService
	rides     *service.RideService
	drivers   *service.DriverService
	receipts  *service.ReceiptService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     memory.NewStore(),
		publisher: &RecordingPublisher{},
		locations: NewMockLocationStore(),
		locks:     NewMockLockStore(),
		card:      &MockProvider{method: domain.PaymentMethodClick},
	}

	notif := service.NewNotificationService(env.publisher)
	registry := payment.NewRegistry(payment.CashProvider{}, env.card)

	env.fare = service.NewFareCalculator(service.DefaultFareConfig())
	env.promos = service.NewPromoService(env.store, nil)
	env.payments = service.NewPaymentService(env.store, registry, "UZS", notif)
	env.lifecycle = service.NewLifecycleService(env.store, env.payments, notif)
	env.matching = service.NewMatchingService(env.store, env.lifecycle, env.locks, service.MatchingConfig{RadiusKm: 5})
	env.rides = service.NewRideService(env.store, env.fare, env.promos, nil, nil, env.matching, notif)
	env.drivers = service.NewDriverService(env.store, env.locations, env.matching, notif)
	env.receipts = service.NewReceiptService(env.store, env.fare, "UZS")
	return env
}

func (env *testEnv) addRider(id string) {
	env.store.AddProfile(&domain.Profile{ID: id, FullName: "Rider " + id, Role: domain.RoleRider})
}

func (env *testEnv) addDriver(id string, lat, lng float64) {
	env.store.AddDriver(&domain.Driver{
		ID:          id,
		UserID:      "user-" + id,
		IsOnline:    true,
		HasPosition: true,
		Lat:         lat,
		Lng:         lng,
		Rating:      5.0,
	})
}

func (env *testEnv) addPendingRide(id, riderID string, fare int64, created time.Time) *domain.Ride {
	ride := &domain.Ride{
		ID:              id,
		RiderID:         riderID,
		Pickup:          centre,
		Dropoff:         airport,
		Class:           domain.RideClassEconomy,
		DistanceMeters:  6000,
		DurationSeconds: 720,
		Fare:            domain.FareBreakdown{Base: 5000, DistanceFare: 18000, TimeFare: 6000, Total: fare},
		FareAmount:      fare,
		SurgeMultiplier: 1.0,
		PaymentMethod:   domain.PaymentMethodCash,
		Status:          domain.RideStatusPending,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	env.store.AddRide(ride)
	return ride
}

func int64Ptr(v int64) *int64 { return &v }
