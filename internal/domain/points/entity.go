package points

import (
	"time"

	"github.com/google/uuid"
)

// Grant is one time-limited award of loyalty points
type Grant struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Amount    int64     `db:"amount"`
	Source    string    `db:"source"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// IsExpired reports whether the grant lapsed before now
func (g *Grant) IsExpired(now time.Time) bool {
	return g.ExpiresAt.Before(now)
}

// ExpiryResult summarizes one expiry sweep
type ExpiryResult struct {
	Users         int
	GrantsDeleted int
	Failed        int
}

// BalanceResponse for GET /points/me
type BalanceResponse struct {
	Balance int64           `json:"balance"`
	Grants  []GrantResponse `json:"grants"`
}

// GrantResponse is the public shape of a grant
type GrantResponse struct {
	ID        uuid.UUID `json:"id"`
	Amount    int64     `json:"amount"`
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expiresAt"`
}
