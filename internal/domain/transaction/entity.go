package transaction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/ledger"
)

// Status is the lifecycle state of a purchase
type Status string

const (
	StatusWaitingPayment      Status = "WAITING_PAYMENT"
	StatusWaitingConfirmation Status = "WAITING_CONFIRMATION"
	StatusDone                Status = "DONE"
	StatusExpired             Status = "EXPIRED"
	StatusCanceled            Status = "CANCELED"
	StatusRejected            Status = "REJECTED"
)

// IsPending reports whether the purchase can still be reversed
func (s Status) IsPending() bool {
	return s == StatusWaitingPayment || s == StatusWaitingConfirmation
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	_, ok := Transitions[s]
	return !ok
}

const (
	// DefaultPaymentWindow is how long a new purchase waits for a payment proof.
	DefaultPaymentWindow = 2 * time.Hour
	// DefaultConfirmationWindow is measured from creation; after it an
	// unconfirmed purchase is cancelled automatically.
	DefaultConfirmationWindow = 72 * time.Hour
)

// Transaction is one ticket purchase.
// Invariant: TotalAmount = max(0, price*Quantity - DiscountAmount - PointsUsed).
type Transaction struct {
	ID             uuid.UUID      `db:"id"`
	UserID         uuid.UUID      `db:"user_id"`
	EventID        uuid.UUID      `db:"event_id"`
	TicketTierID   uuid.UUID      `db:"ticket_tier_id"`
	Quantity       int            `db:"quantity"`
	TotalAmount    int64          `db:"total_amount"`
	DiscountAmount int64          `db:"discount_amount"`
	PointsUsed     int64          `db:"points_used"`
	CouponID       uuid.NullUUID  `db:"coupon_id"`
	Status         Status         `db:"status"`
	ProofURL       sql.NullString `db:"proof_url"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	ExpiresAt      sql.NullTime   `db:"expires_at"`
}

// Reservation returns what the purchase holds against the ledger
func (t *Transaction) Reservation() ledger.Reservation {
	return ledger.Reservation{
		TierID:   t.TicketTierID,
		Seats:    t.Quantity,
		UserID:   t.UserID,
		Points:   t.PointsUsed,
		CouponID: t.CouponID,
	}
}

// PaymentOverdue reports whether the payment deadline passed before now
func (t *Transaction) PaymentOverdue(now time.Time) bool {
	return t.ExpiresAt.Valid && t.ExpiresAt.Time.Before(now)
}

// ListFilter narrows and pages transaction listings
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

// Normalize fills paging defaults
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset returns the row offset of the requested page
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
