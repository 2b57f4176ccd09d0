// Package memory provides an in-process repository.Store with the same
// compare-and-swap semantics as the PostgreSQL store. Tests use it as a
// fake; every map is guarded by one mutex and reads return copies.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// Store is an in-memory implementation of repository.Store.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	rides        map[string]*domain.Ride
	drivers      map[string]*domain.Driver
	locations    []*domain.DriverLocation
	transactions map[string]*domain.Transaction
	promos       map[string]*domain.PromoCode
	redemptions  map[string]time.Time
	profiles     map[string]*domain.Profile
	ratings      map[string]*domain.Rating

	// Counters for verification
	AssignCallCount              int32
	RideTransitionCallCount      int32
	PaymentStatusUpdateCount     int32
	TransactionCreateCount       int32
	TransactionTransitionCount   int32
	PromoUsageIncrementCallCount int32
	TxCount                      int32

	// Error injection
	CreateRideError        error
	AssignError            error
	RideTransitionError    error
	CreateTransactionError error
	PaymentStatusError     error
	ListAvailableError     error
	AppendLocationError    error
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rides:        make(map[string]*domain.Ride),
		drivers:      make(map[string]*domain.Driver),
		transactions: make(map[string]*domain.Transaction),
		promos:       make(map[string]*domain.PromoCode),
		redemptions:  make(map[string]time.Time),
		profiles:     make(map[string]*domain.Profile),
		ratings:      make(map[string]*domain.Rating),
	}
}

func (s *Store) Rides() repository.RideRepository               { return &rideRepo{s} }
func (s *Store) Drivers() repository.DriverRepository           { return &driverRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository { return &transactionRepo{s} }
func (s *Store) Promos() repository.PromoRepository             { return &promoRepo{s} }
func (s *Store) Profiles() repository.ProfileRepository         { return &profileRepo{s} }
func (s *Store) Ratings() repository.RatingRepository           { return &ratingRepo{s} }

// WithTx serializes transactional callers and restores a snapshot when fn
// fails. Writes made outside WithTx while fn runs are lost on rollback.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	atomic.AddInt32(&s.TxCount, 1)

	snap := s.snapshot()
	if err := fn(txView{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// txView is the Store handed to WithTx callbacks; nested WithTx calls run
// inline instead of deadlocking on txMu.
type txView struct {
	*Store
}

func (v txView) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(v)
}

type snapshot struct {
	rides        map[string]domain.Ride
	drivers      map[string]domain.Driver
	locations    int
	transactions map[string]domain.Transaction
	promos       map[string]domain.PromoCode
	redemptions  map[string]time.Time
	profiles     map[string]domain.Profile
	ratings      map[string]domain.Rating
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		rides:        copyValues(s.rides),
		drivers:      copyValues(s.drivers),
		locations:    len(s.locations),
		transactions: copyValues(s.transactions),
		promos:       copyValues(s.promos),
		redemptions:  copyMap(s.redemptions),
		profiles:     copyValues(s.profiles),
		ratings:      copyValues(s.ratings),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides = toPointers(snap.rides)
	s.drivers = toPointers(snap.drivers)
	s.locations = s.locations[:snap.locations]
	s.transactions = toPointers(snap.transactions)
	s.promos = toPointers(snap.promos)
	s.redemptions = snap.redemptions
	s.profiles = toPointers(snap.profiles)
	s.ratings = toPointers(snap.ratings)
}

func copyValues[T any](m map[string]*T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

func toPointers[T any](m map[string]T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ──────────────────────────────────────────────
// SEEDING AND ASSERTION HELPERS
// ──────────────────────────────────────────────

// AddRide stores a ride as-is.
func (s *Store) AddRide(ride *domain.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *ride
	s.rides[ride.ID] = &r
}

// AddDriver stores a driver as-is.
func (s *Store) AddDriver(driver *domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *driver
	s.drivers[driver.ID] = &d
}

// AddPromo stores a promo as-is.
func (s *Store) AddPromo(promo *domain.PromoCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *promo
	s.promos[promo.Code] = &p
}

// AddProfile stores a profile as-is.
func (s *Store) AddProfile(profile *domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *profile
	s.profiles[profile.ID] = &p
}

// AddTransaction stores a transaction as-is.
func (s *Store) AddTransaction(t *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.transactions[t.ID] = &c
}

// Ride returns a copy of the stored ride, or nil.
func (s *Store) Ride(id string) *domain.Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rides[id]; ok {
		c := *r
		return &c
	}
	return nil
}

// Driver returns a copy of the stored driver, or nil.
func (s *Store) Driver(id string) *domain.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.drivers[id]; ok {
		c := *d
		return &c
	}
	return nil
}

// Promo returns a copy of the stored promo, or nil.
func (s *Store) Promo(code string) *domain.PromoCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.promos[code]; ok {
		c := *p
		return &c
	}
	return nil
}

// Transaction returns a copy of the stored transaction, or nil.
func (s *Store) Transaction(id string) *domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.transactions[id]; ok {
		c := *t
		return &c
	}
	return nil
}

// TransactionsForRide returns copies of every transaction of a ride.
func (s *Store) TransactionsForRide(rideID string) []*domain.Transaction {
	txs, _ := (&transactionRepo{s}).ListByRide(context.Background(), rideID)
	return txs
}

// Locations returns how many location samples were appended.
func (s *Store) Locations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locations)
}

// ──────────────────────────────────────────────
// RIDES
// ──────────────────────────────────────────────

type rideRepo struct{ s *Store }

func (r *rideRepo) Create(ctx context.Context, ride *domain.Ride) error {
	if r.s.CreateRideError != nil {
		return r.s.CreateRideError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rides[ride.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *ride
	r.s.rides[ride.ID] = &c
	return nil
}

func (r *rideRepo) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if ride := r.s.Ride(id); ride != nil {
		return ride, nil
	}
	return nil, repository.ErrNotFound
}

func (r *rideRepo) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Ride
	for _, ride := range r.s.rides {
		if filter.RiderID != "" && ride.RiderID != filter.RiderID {
			continue
		}
		if filter.DriverID != "" && ride.DriverID != filter.DriverID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ride.Status) {
			continue
		}
		c := *ride
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *rideRepo) ListPending(ctx context.Context, limit int) ([]*domain.Ride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Ride
	for _, ride := range r.s.rides {
		if ride.Status == domain.RideStatusPending {
			c := *ride
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *rideRepo) Assign(ctx context.Context, rideID, driverID string, at time.Time) error {
	atomic.AddInt32(&r.s.AssignCallCount, 1)
	if r.s.AssignError != nil {
		return r.s.AssignError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, ok := r.s.rides[rideID]
	if !ok {
		return repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusPending {
		return repository.ErrStaleState
	}
	if r.s.driverBusyLocked(driverID) {
		return repository.ErrDriverBusy
	}
	ride.Status = domain.RideStatusAccepted
	ride.DriverID = driverID
	ride.UpdatedAt = at
	return nil
}

func (r *rideRepo) Transition(ctx context.Context, t repository.RideTransition) error {
	atomic.AddInt32(&r.s.RideTransitionCallCount, 1)
	if r.s.RideTransitionError != nil {
		return r.s.RideTransitionError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, ok := r.s.rides[t.RideID]
	if !ok || ride.Status != t.From {
		return repository.ErrStaleState
	}
	if t.DriverID != "" && ride.DriverID != t.DriverID {
		return repository.ErrStaleState
	}
	ride.Status = t.To
	ride.UpdatedAt = t.At
	if t.ReleaseDriver {
		ride.DriverID = ""
	}
	if t.CancelReason != "" {
		ride.CancelReason = t.CancelReason
	}
	return nil
}

func (r *rideRepo) UpdatePaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus, at time.Time) error {
	atomic.AddInt32(&r.s.PaymentStatusUpdateCount, 1)
	if r.s.PaymentStatusError != nil {
		return r.s.PaymentStatusError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, ok := r.s.rides[rideID]
	if !ok {
		return repository.ErrNotFound
	}
	ride.PaymentStatus = status
	ride.UpdatedAt = at
	return nil
}

func (s *Store) driverBusyLocked(driverID string) bool {
	for _, ride := range s.rides {
		if ride.DriverID == driverID && ride.Status.IsActive() {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.RideStatus, status domain.RideStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// DRIVERS
// ──────────────────────────────────────────────

type driverRepo struct{ s *Store }

func (r *driverRepo) Create(ctx context.Context, driver *domain.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[driver.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *driver
	r.s.drivers[driver.ID] = &c
	return nil
}

func (r *driverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if d := r.s.Driver(id); d != nil {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (r *driverRepo) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	return r.list(func(*domain.Driver) bool { return true }), nil
}

func (r *driverRepo) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	if r.s.ListAvailableError != nil {
		return nil, r.s.ListAvailableError
	}
	return r.list(func(d *domain.Driver) bool {
		return d.IsOnline && d.HasPosition && !r.s.driverBusyLocked(d.ID)
	}), nil
}

func (r *driverRepo) list(keep func(*domain.Driver) bool) []*domain.Driver {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Driver
	for _, d := range r.s.drivers {
		if keep(d) {
			c := *d
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *driverRepo) update(id string, fn func(*domain.Driver)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(d)
	return nil
}

func (r *driverRepo) SetOnline(ctx context.Context, id string, online bool) error {
	return r.update(id, func(d *domain.Driver) { d.IsOnline = online })
}

func (r *driverRepo) UpdatePosition(ctx context.Context, id string, lat, lng, heading float64) error {
	return r.update(id, func(d *domain.Driver) {
		d.HasPosition = true
		d.Lat, d.Lng, d.Heading = lat, lng, heading
	})
}

func (r *driverRepo) RecordCompletedRide(ctx context.Context, id string, earnings int64) error {
	return r.update(id, func(d *domain.Driver) {
		d.TotalRides++
		d.TotalEarnings += earnings
	})
}

func (r *driverRepo) UpdateRating(ctx context.Context, id string, rating float64) error {
	return r.update(id, func(d *domain.Driver) { d.Rating = rating })
}

func (r *driverRepo) AppendLocation(ctx context.Context, loc *domain.DriverLocation) error {
	if r.s.AppendLocationError != nil {
		return r.s.AppendLocationError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *loc
	r.s.locations = append(r.s.locations, &c)
	return nil
}

func (r *driverRepo) ListLocations(ctx context.Context, driverID string, limit int) ([]*domain.DriverLocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.DriverLocation
	for i := len(r.s.locations) - 1; i >= 0; i-- {
		if r.s.locations[i].DriverID != driverID {
			continue
		}
		c := *r.s.locations[i]
		result = append(result, &c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// TRANSACTIONS
// ──────────────────────────────────────────────

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	atomic.AddInt32(&r.s.TransactionCreateCount, 1)
	if r.s.CreateTransactionError != nil {
		return r.s.CreateTransactionError
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transactions[t.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *t
	r.s.transactions[t.ID] = &c
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if t := r.s.Transaction(id); t != nil {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (r *transactionRepo) ListByRide(ctx context.Context, rideID string) ([]*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range r.s.transactions {
		if t.RideID == rideID {
			c := *t
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *transactionRepo) Transition(ctx context.Context, id string, from, to domain.PaymentStatus, externalID string, at time.Time) error {
	atomic.AddInt32(&r.s.TransactionTransitionCount, 1)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.transactions[id]
	if !ok || t.Status != from {
		return repository.ErrStaleState
	}
	if to == domain.PaymentStatusCompleted {
		for _, other := range r.s.transactions {
			if other.ID != id && other.RideID == t.RideID && other.Status == domain.PaymentStatusCompleted {
				return repository.ErrDuplicate
			}
		}
	}
	t.Status = to
	t.UpdatedAt = at
	if externalID != "" {
		t.ExternalID = externalID
	}
	return nil
}

// ──────────────────────────────────────────────
// PROMO CODES
// ──────────────────────────────────────────────

type promoRepo struct{ s *Store }

func (r *promoRepo) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	if p := r.s.Promo(code); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r *promoRepo) GetAll(ctx context.Context) ([]*domain.PromoCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*domain.PromoCode, 0, len(r.s.promos))
	for _, p := range r.s.promos {
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *promoRepo) Create(ctx context.Context, promo *domain.PromoCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.promos[promo.Code]; ok {
		return repository.ErrDuplicate
	}
	c := *promo
	r.s.promos[promo.Code] = &c
	return nil
}

func (r *promoRepo) SetActive(ctx context.Context, code string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[code]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (r *promoRepo) InsertRedemption(ctx context.Context, code, rideID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := code + "|" + rideID
	if _, ok := r.s.redemptions[key]; ok {
		return false, nil
	}
	r.s.redemptions[key] = at
	return true, nil
}

func (r *promoRepo) IncrementUsage(ctx context.Context, code string) error {
	atomic.AddInt32(&r.s.PromoUsageIncrementCallCount, 1)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[code]
	if !ok || !p.IsActive || p.Exhausted() {
		return repository.ErrStaleState
	}
	p.UsedCount++
	return nil
}

// ──────────────────────────────────────────────
// PROFILES AND RATINGS
// ──────────────────────────────────────────────

type profileRepo struct{ s *Store }

func (r *profileRepo) Create(ctx context.Context, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *profile
	r.s.profiles[profile.ID] = &c
	return nil
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

type ratingRepo struct{ s *Store }

func (r *ratingRepo) Create(ctx context.Context, rating *domain.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ratings[rating.RideID]; ok {
		return repository.ErrDuplicate
	}
	c := *rating
	r.s.ratings[rating.RideID] = &c
	return nil
}

func (r *ratingRepo) AverageForDriver(ctx context.Context, driverID string) (float64, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var sum, count int
	for _, rating := range r.s.ratings {
		if rating.DriverID == driverID {
			sum += rating.Score
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}
