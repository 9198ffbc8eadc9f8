package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository reads events and ticket tiers
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetTier(ctx context.Context, id uuid.UUID) (*TicketTier, error)
	// GetTierForUpdate locks the tier row so the seat check and the
	// reservation cannot interleave with another purchase.
	GetTierForUpdate(ctx context.Context, id uuid.UUID) (*TicketTier, error)
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository creates an event repository over a pool or an open transaction
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	err := sqlx.GetContext(ctx, r.db, &e, `
		SELECT id, organizer_id, name, start_date, created_at
		FROM events WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

func (r *repository) GetTier(ctx context.Context, id uuid.UUID) (*TicketTier, error) {
	return r.getTier(ctx, `SELECT id, event_id, name, price, quantity, sold FROM ticket_tiers WHERE id = $1`, id)
}

func (r *repository) GetTierForUpdate(ctx context.Context, id uuid.UUID) (*TicketTier, error) {
	return r.getTier(ctx, `SELECT id, event_id, name, price, quantity, sold FROM ticket_tiers WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) getTier(ctx context.Context, query string, id uuid.UUID) (*TicketTier, error) {
	var t TicketTier
	if err := sqlx.GetContext(ctx, r.db, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket tier: %w", err)
	}
	return &t, nil
}
