package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// PromoService validates, redeems and administers promo codes.
type PromoService struct {
	store repository.Store
	cache redis.PromoCacheInterface // optional
}

// NewPromoService creates a new PromoService. cache may be nil.
func NewPromoService(store repository.Store, cache redis.PromoCacheInterface) *PromoService {
	return &PromoService{
		store: store,
		cache: cache,
	}
}

// PromoQuote is the result of applying a code to an amount.
type PromoQuote struct {
	Code         string
	DiscountType domain.DiscountType
	Discount     int64
	FinalAmount  int64
}

// NormalizePromoCode trims and upper-cases a code and checks its format.
func NormalizePromoCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !promoCodePattern.MatchString(code) {
		return "", ErrInvalidPromoCode
	}
	return code, nil
}

// Validate checks a code against the catalog and prices the discount for
// rideAmount. It never consumes a use.
func (s *PromoService) Validate(ctx context.Context, code string, rideAmount int64) (*PromoQuote, error) {
	if rideAmount < 0 {
		return nil, ErrInvalidPaymentAmount
	}

	code, err := NormalizePromoCode(code)
	if err != nil {
		return nil, err
	}

	promo, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if !promo.IsActive || promo.Exhausted() {
		return nil, ErrPromoUnavailable
	}

	discount := Discount(promo, rideAmount)
	return &PromoQuote{
		Code:         promo.Code,
		DiscountType: promo.DiscountType,
		Discount:     discount,
		FinalAmount:  rideAmount - discount,
	}, nil
}

// Discount prices a promo against an amount. The result never exceeds the
// amount.
func Discount(promo *domain.PromoCode, amount int64) int64 {
	var discount int64
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		discount = roundDiv(amount*promo.DiscountValue, 100)
		if promo.MaxDiscount != nil && discount > *promo.MaxDiscount {
			discount = *promo.MaxDiscount
		}
	case domain.DiscountFixed:
		discount = promo.DiscountValue
	}

	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Redeem consumes one use of code for rideID. A repeated redemption for
// the same ride returns false without counting again.
func (s *PromoService) Redeem(ctx context.Context, code, rideID string) (bool, error) {
	if rideID == "" {
		return false, ErrInvalidRideID
	}

	code, err := NormalizePromoCode(code)
	if err != nil {
		return false, err
	}

	var redeemed bool
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		redeemed, err = s.redeemIn(ctx, tx, code, rideID)
		return err
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

// redeemIn performs the redemption against a transactional store.
func (s *PromoService) redeemIn(ctx context.Context, tx repository.Store, code, rideID string) (bool, error) {
	inserted, err := tx.Promos().InsertRedemption(ctx, code, rideID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record redemption: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if err := tx.Promos().IncrementUsage(ctx, code); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return false, ErrPromoUnavailable
		}
		return false, err
	}

	s.invalidate(ctx, code)
	return true, nil
}

// List returns the full catalog and refreshes the cache with it.
func (s *PromoService) List(ctx context.Context) ([]*domain.PromoCode, error) {
	promos, err := s.store.Promos().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.WarmPromos(ctx, promos); err != nil {
			log.Printf("[PROMO] cache warm failed: %v", err)
		}
	}
	return promos, nil
}

// CreatePromoRequest contains the parameters for creating a promo code.
type CreatePromoRequest struct {
	Code          string
	DiscountType  domain.DiscountType
	DiscountValue int64
	MaxDiscount   *int64
	UsageLimit    *int64
}

// Create adds a promo code to the catalog.
func (s *PromoService) Create(ctx context.Context, req CreatePromoRequest) (*domain.PromoCode, error) {
	code, err := NormalizePromoCode(req.Code)
	if err != nil {
		return nil, err
	}

	if err := validateDiscount(req); err != nil {
		return nil, err
	}

	promo := &domain.PromoCode{
		Code:          code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Promos().Create(ctx, promo); err != nil {
		return nil, err
	}

	s.invalidate(ctx, code)
	return promo, nil
}

func validateDiscount(req CreatePromoRequest) error {
	switch req.DiscountType {
	case domain.DiscountPercentage:
		if req.DiscountValue <= 0 || req.DiscountValue > 100 {
			return ErrInvalidDiscount
		}
		if req.MaxDiscount != nil && *req.MaxDiscount <= 0 {
			return ErrInvalidDiscount
		}
	case domain.DiscountFixed:
		if req.DiscountValue <= 0 || req.MaxDiscount != nil {
			return ErrInvalidDiscount
		}
	default:
		return ErrInvalidDiscount
	}

	if req.UsageLimit != nil && *req.UsageLimit <= 0 {
		return ErrInvalidDiscount
	}
	return nil
}

// SetActive enables or disables a code.
func (s *PromoService) SetActive(ctx context.Context, code string, active bool) (*domain.PromoCode, error) {
	code, err := NormalizePromoCode(code)
	if err != nil {
		return nil, err
	}

	if err := s.store.Promos().SetActive(ctx, code, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, code)
	return s.store.Promos().GetByCode(ctx, code)
}

// lookup reads a promo through the cache.
func (s *PromoService) lookup(ctx context.Context, code string) (*domain.PromoCode, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPromo(ctx, code)
		if err != nil {
			log.Printf("[PROMO] cache read failed for %s: %v", code, err)
		} else if cached != nil {
			return cached.Promo(), nil
		}
	}

	promo, err := s.store.Promos().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPromo(ctx, redis.NewCachedPromo(promo)); err != nil {
			log.Printf("[PROMO] cache write failed for %s: %v", code, err)
		}
	}
	return promo, nil
}

func (s *PromoService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePromo(ctx, code); err != nil {
		log.Printf("[PROMO] cache invalidate failed for %s: %v", code, err)
	}
}
