package domain

import "time"

// DiscountType is how a promo code's value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PromoCode is a catalog entry. Code is stored upper-case.
type PromoCode struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64
	MaxDiscount   *int64 // percentage only
	UsageLimit    *int64
	UsedCount     int64
	IsActive      bool
	CreatedAt     time.Time
}

// Exhausted reports whether the usage limit has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit
}
