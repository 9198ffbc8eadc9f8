package ledger

import "errors"

var (
	ErrSeatsExhausted     = errors.New("not enough seats left on ticket tier")
	ErrSeatsUnderflow     = errors.New("ticket tier sold count would go negative")
	ErrInsufficientPoints = errors.New("insufficient points balance")
	ErrCouponExhausted    = errors.New("coupon usage limit reached")
	ErrCouponUnderflow    = errors.New("coupon used count would go negative")
	ErrRowNotFound        = errors.New("ledger row not found")
)
