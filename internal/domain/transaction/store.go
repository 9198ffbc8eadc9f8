package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/ledger"
	"github.com/eventify/eventify-api/internal/domain/user"
)

// Store is the persistence boundary of the purchase flow. Every mutation
// happens inside WithinTx; reads outside it see committed state only.
type Store interface {
	// WithinTx runs fn in one database transaction. A returned error rolls
	// back every write fn made, ledger adjustments included.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Transaction, int, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, filter ListFilter) ([]*Transaction, int, error)

	// ListExpiredPayments returns WAITING_PAYMENT ids whose expires_at is before now.
	ListExpiredPayments(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// ListStaleConfirmations returns WAITING_CONFIRMATION ids created before cutoff.
	ListStaleConfirmations(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error)
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Tx is the view of the store inside one database transaction. Lookups
// return nil, nil when the row does not exist.
type Tx interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error)
	GetTierForUpdate(ctx context.Context, id uuid.UUID) (*event.TicketTier, error)
	GetUserForUpdate(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetCouponByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error)

	GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Insert(ctx context.Context, t *Transaction) error
	Update(ctx context.Context, t *Transaction) error

	Ledger() ledger.Ledger
}
