package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/eventify/eventify-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const grantColumns = `id, user_id, amount, source, expires_at, created_at`

// PostgresStore is the Store on PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates the Postgres-backed store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (s *PostgresStore) ListExpiredGrants(ctx context.Context, now time.Time) ([]Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	grants := make([]Grant, 0)
	err := s.db.SelectContext(ctx, &grants, `
		SELECT `+grantColumns+` FROM user_points
		WHERE expires_at < $1
		ORDER BY user_id, expires_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresStore) ListActiveGrants(ctx context.Context, userID uuid.UUID, now time.Time) ([]Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	grants := make([]Grant, 0)
	err := s.db.SelectContext(ctx, &grants, `
		SELECT `+grantColumns+` FROM user_points
		WHERE user_id = $1 AND expires_at >= $2
		ORDER BY expires_at
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list active grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT points FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get balance: %w", err)
	}
	return balance, true, nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) DeleteGrants(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM user_points WHERE id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}

func (t *postgresTx) SumActiveGrants(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var sum int64
	err := t.tx.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM user_points
		WHERE user_id = $1 AND expires_at >= $2
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("sum active grants: %w", err)
	}
	return sum, nil
}

func (t *postgresTx) SetBalance(ctx context.Context, userID uuid.UUID, balance int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET points = $2, updated_at = now() WHERE id = $1`, userID, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
