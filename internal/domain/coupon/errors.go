package coupon

import "errors"

var (
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCouponExpired    = errors.New("coupon has expired")
	ErrCouponInactive   = errors.New("coupon is not available")
	ErrCouponUsageLimit = errors.New("coupon usage limit reached")
	ErrCouponWrongEvent = errors.New("this coupon is not valid for this event")
)
