package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const couponColumns = `id, code, discount_type, discount_value, min_purchase, max_discount,
	usage_limit, used_count, valid_from, valid_until, is_active, event_id, created_at`

// Repository reads coupons
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	// GetByCodeForUpdate locks the coupon row for the eligibility check.
	GetByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository creates a coupon repository over a pool or an open transaction
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	return r.get(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
}

func (r *repository) GetByCodeForUpdate(ctx context.Context, code string) (*Coupon, error) {
	return r.get(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, code)
}

func (r *repository) get(ctx context.Context, query string, arg interface{}) (*Coupon, error) {
	var c Coupon
	if err := sqlx.GetContext(ctx, r.db, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}
