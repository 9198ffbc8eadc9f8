package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the discount granted by c on base (smallest currency
// units). Percentage results are truncated to whole units before the
// MaxDiscount cap; the result never exceeds base and is never negative.
func Discount(c *Coupon, base int64) int64 {
	if c == nil || base <= 0 || base < c.MinPurchase {
		return 0
	}

	var amount int64
	switch c.DiscountType {
	case DiscountPercentage:
		amount = decimal.NewFromInt(base).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(hundred).
			Truncate(0).
			IntPart()
		if c.MaxDiscount.Valid && amount > c.MaxDiscount.Int64 {
			amount = c.MaxDiscount.Int64
		}
	case DiscountFixed:
		amount = c.DiscountValue
	}

	if amount < 0 {
		return 0
	}
	if amount > base {
		return base
	}
	return amount
}

// CheckForPurchase returns the first reason c cannot be consumed by a
// purchase for eventID at now, or nil.
func CheckForPurchase(c *Coupon, eventID uuid.UUID, now time.Time) error {
	switch {
	case c == nil:
		return ErrCouponNotFound
	case c.IsExpired(now):
		return ErrCouponExpired
	case !c.IsActive:
		return ErrCouponInactive
	case c.IsExhausted():
		return ErrCouponUsageLimit
	case !c.AppliesTo(eventID):
		return ErrCouponWrongEvent
	}
	return nil
}
