package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type postgresLedger struct {
	db sqlx.ExtContext
}

// NewPostgres returns a ledger writing through db, normally an open *sqlx.Tx
func NewPostgres(db sqlx.ExtContext) Ledger {
	return &postgresLedger{db: db}
}

func (l *postgresLedger) AdjustSold(ctx context.Context, tierID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE ticket_tiers
		SET sold = sold + $2
		WHERE id = $1 AND sold + $2 BETWEEN 0 AND quantity
	`, tierID, delta)
	if err != nil {
		return fmt.Errorf("adjust sold: %w", err)
	}
	return l.checkApplied(ctx, res, `SELECT EXISTS(SELECT 1 FROM ticket_tiers WHERE id = $1)`, tierID, boundsErr(delta, ErrSeatsExhausted, ErrSeatsUnderflow))
}

func (l *postgresLedger) AdjustPoints(ctx context.Context, userID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE users
		SET points = points + $2, updated_at = now()
		WHERE id = $1 AND points + $2 >= 0
	`, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust points: %w", err)
	}
	return l.checkApplied(ctx, res, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID, ErrInsufficientPoints)
}

func (l *postgresLedger) AdjustCouponUsage(ctx context.Context, couponID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + $2
		WHERE id = $1 AND used_count + $2 BETWEEN 0 AND usage_limit
	`, couponID, delta)
	if err != nil {
		return fmt.Errorf("adjust coupon usage: %w", err)
	}
	return l.checkApplied(ctx, res, `SELECT EXISTS(SELECT 1 FROM coupons WHERE id = $1)`, couponID, boundsErr(delta, ErrCouponExhausted, ErrCouponUnderflow))
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// checkApplied tells a missing row apart from a violated bound when the
// guarded UPDATE touched nothing.
func (l *postgresLedger) checkApplied(ctx context.Context, res rowsAffecter, existsQuery string, id uuid.UUID, bounds error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, l.db, &exists, existsQuery, id); err != nil {
		return fmt.Errorf("check row: %w", err)
	}
	if !exists {
		return ErrRowNotFound
	}
	return bounds
}

func boundsErr(delta int, over, under error) error {
	if delta > 0 {
		return over
	}
	return under
}
