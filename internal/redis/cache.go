package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/domain"
)

// PromoCacheTTL bounds how stale a cached promo may be. The usage limit is
// enforced in SQL, so staleness only affects quotes.
const PromoCacheTTL = 60 * time.Second

const promoCachePrefix = "cache:promo:"

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CachedPromo represents a cached promo code.
type CachedPromo struct {
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	MaxDiscount   *int64    `json:"max_discount,omitempty"`
	UsageLimit    *int64    `json:"usage_limit,omitempty"`
	UsedCount     int64     `json:"used_count"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewCachedPromo converts a domain promo for caching.
func NewCachedPromo(p *domain.PromoCode) *CachedPromo {
	return &CachedPromo{
		Code:          p.Code,
		DiscountType:  string(p.DiscountType),
		DiscountValue: p.DiscountValue,
		MaxDiscount:   p.MaxDiscount,
		UsageLimit:    p.UsageLimit,
		UsedCount:     p.UsedCount,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
	}
}

// Promo converts the cached entry back to a domain promo.
func (c *CachedPromo) Promo() *domain.PromoCode {
	return &domain.PromoCode{
		Code:          c.Code,
		DiscountType:  domain.DiscountType(c.DiscountType),
		DiscountValue: c.DiscountValue,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
	}
}

// GetPromo retrieves a promo from cache.
func (s *CacheStore) GetPromo(ctx context.Context, code string) (*CachedPromo, error) {
	data, err := s.client.Get(ctx, promoCachePrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var promo CachedPromo
	if err := json.Unmarshal(data, &promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

// SetPromo stores a promo in cache.
func (s *CacheStore) SetPromo(ctx context.Context, promo *CachedPromo) error {
	data, err := json.Marshal(promo)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, promoCachePrefix+promo.Code, data, PromoCacheTTL).Err()
}

// InvalidatePromo removes a promo from cache.
func (s *CacheStore) InvalidatePromo(ctx context.Context, code string) error {
	return s.client.Del(ctx, promoCachePrefix+code).Err()
}

// WarmPromos caches a batch of promos in one pipeline.
func (s *CacheStore) WarmPromos(ctx context.Context, promos []*domain.PromoCode) error {
	if len(promos) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, p := range promos {
		data, err := json.Marshal(NewCachedPromo(p))
		if err != nil {
			continue
		}
		pipe.Set(ctx, promoCachePrefix+p.Code, data, PromoCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}
