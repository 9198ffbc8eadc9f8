// Package ledger holds the atomic counter adjustments behind seat
// inventory, loyalty points and coupon usage.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Ledger adjusts the three shared counters. Every call is a single guarded
// statement: it either applies the whole delta inside the counter's bounds
// or changes nothing and returns a bounds error.
type Ledger interface {
	// AdjustSold moves ticket_tiers.sold by delta within [0, quantity].
	AdjustSold(ctx context.Context, tierID uuid.UUID, delta int) error
	// AdjustPoints moves users.points by delta, never below zero.
	AdjustPoints(ctx context.Context, userID uuid.UUID, delta int64) error
	// AdjustCouponUsage moves coupons.used_count by delta within [0, usage_limit].
	AdjustCouponUsage(ctx context.Context, couponID uuid.UUID, delta int) error
}

// Reservation is everything one purchase holds against the ledger
type Reservation struct {
	TierID   uuid.UUID
	Seats    int
	UserID   uuid.UUID
	Points   int64
	CouponID uuid.NullUUID
}

// Reserve takes seats, debits points and consumes one coupon use. The caller
// must run it inside the same database transaction as the row it backs so a
// failure part way rolls everything back.
func Reserve(ctx context.Context, l Ledger, r Reservation) error {
	if err := l.AdjustSold(ctx, r.TierID, r.Seats); err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if r.Points > 0 {
		if err := l.AdjustPoints(ctx, r.UserID, -r.Points); err != nil {
			return fmt.Errorf("debit points: %w", err)
		}
	}
	if r.CouponID.Valid {
		if err := l.AdjustCouponUsage(ctx, r.CouponID.UUID, 1); err != nil {
			return fmt.Errorf("consume coupon: %w", err)
		}
	}
	return nil
}

// Release is the exact inverse of Reserve.
func Release(ctx context.Context, l Ledger, r Reservation) error {
	if err := l.AdjustSold(ctx, r.TierID, -r.Seats); err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if r.Points > 0 {
		if err := l.AdjustPoints(ctx, r.UserID, r.Points); err != nil {
			return fmt.Errorf("refund points: %w", err)
		}
	}
	if r.CouponID.Valid {
		if err := l.AdjustCouponUsage(ctx, r.CouponID.UUID, -1); err != nil {
			return fmt.Errorf("restore coupon: %w", err)
		}
	}
	return nil
}
