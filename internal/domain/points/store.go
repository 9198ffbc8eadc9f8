package points

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists grants and the denormalized balance
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListExpiredGrants returns every grant with expires_at before now.
	ListExpiredGrants(ctx context.Context, now time.Time) ([]Grant, error)
	ListActiveGrants(ctx context.Context, userID uuid.UUID, now time.Time) ([]Grant, error)
	// GetBalance returns the user's points; found is false for unknown users.
	GetBalance(ctx context.Context, userID uuid.UUID) (balance int64, found bool, err error)
}

// Tx is the per-user resync unit
type Tx interface {
	DeleteGrants(ctx context.Context, ids []uuid.UUID) error
	// SumActiveGrants totals grants with expires_at at or after now.
	SumActiveGrants(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	SetBalance(ctx context.Context, userID uuid.UUID, balance int64) error
}
