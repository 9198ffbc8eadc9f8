package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, name, role, points, created_at, updated_at`

// Repository defines user data access interface
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByIDForUpdate locks the user row; only meaningful inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error)
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository creates a user repository over a pool or an open transaction
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	if err := sqlx.GetContext(ctx, r.db, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
