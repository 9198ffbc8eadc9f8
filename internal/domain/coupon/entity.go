package coupon

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DiscountType selects how DiscountValue is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Coupon matches the coupons table.
// Invariant: 0 <= UsedCount <= UsageLimit.
type Coupon struct {
	ID            uuid.UUID     `db:"id"`
	Code          string        `db:"code"`
	DiscountType  DiscountType  `db:"discount_type"`
	DiscountValue int64         `db:"discount_value"`
	MinPurchase   int64         `db:"min_purchase"`
	MaxDiscount   sql.NullInt64 `db:"max_discount"` // PERCENTAGE only
	UsageLimit    int           `db:"usage_limit"`
	UsedCount     int           `db:"used_count"`
	ValidFrom     time.Time     `db:"valid_from"`
	ValidUntil    time.Time     `db:"valid_until"`
	IsActive      bool          `db:"is_active"`
	EventID       uuid.NullUUID `db:"event_id"`
	CreatedAt     time.Time     `db:"created_at"`
}

// IsExpired reports whether now is past the validity window
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ValidUntil)
}

// IsExhausted reports whether every use has been handed out
func (c *Coupon) IsExhausted() bool {
	return c.UsedCount >= c.UsageLimit
}

// AppliesTo reports whether the coupon may be used for eventID
func (c *Coupon) AppliesTo(eventID uuid.UUID) bool {
	return !c.EventID.Valid || c.EventID.UUID == eventID
}
