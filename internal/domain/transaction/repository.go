package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/ledger"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const transactionColumns = `id, user_id, event_id, ticket_tier_id, quantity, total_amount, discount_amount,
	points_used, coupon_id, status, proof_url, created_at, updated_at, expires_at`

// PostgresStore is the Store on PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	events event.Repository
	users  user.Repository
}

// NewPostgresStore creates the Postgres-backed store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		events: event.NewRepository(db),
		users:  user.NewRepository(db),
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, newPostgresTx(tx))
	})
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return getTransaction(ctx, s.db, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Transaction, int, error) {
	return s.list(ctx, "user_id", userID, filter)
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID uuid.UUID, filter ListFilter) ([]*Transaction, int, error) {
	return s.list(ctx, "event_id", eventID, filter)
}

// list pages by an owner column; column is always one of the two constants above.
func (s *PostgresStore) list(ctx context.Context, column string, id uuid.UUID, filter ListFilter) ([]*Transaction, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := ` WHERE ` + column + ` = $1 AND ($2::text = '' OR status = $2::text)`

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, id, string(filter.Status)); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	items := make([]*Transaction, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+transactionColumns+` FROM transactions`+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, id, string(filter.Status), filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) ListExpiredPayments(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM transactions
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
	`, string(StatusWaitingPayment), now)
	if err != nil {
		return nil, fmt.Errorf("list expired payments: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListStaleConfirmations(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, string(StatusWaitingConfirmation), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale confirmations: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.users.GetByID(ctx, id)
}

type postgresTx struct {
	tx      *sqlx.Tx
	events  event.Repository
	users   user.Repository
	coupons coupon.Repository
	ledger  ledger.Ledger
}

func newPostgresTx(tx *sqlx.Tx) *postgresTx {
	return &postgresTx{
		tx:      tx,
		events:  event.NewRepository(tx),
		users:   user.NewRepository(tx),
		coupons: coupon.NewRepository(tx),
		ledger:  ledger.NewPostgres(tx),
	}
}

func (t *postgresTx) GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	return t.events.GetByID(ctx, id)
}

func (t *postgresTx) GetTierForUpdate(ctx context.Context, id uuid.UUID) (*event.TicketTier, error) {
	return t.events.GetTierForUpdate(ctx, id)
}

func (t *postgresTx) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return t.users.GetByIDForUpdate(ctx, id)
}

func (t *postgresTx) GetCouponByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	return t.coupons.GetByCodeForUpdate(ctx, code)
}

func (t *postgresTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return getTransaction(ctx, t.tx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (t *postgresTx) Insert(ctx context.Context, tr *Transaction) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :user_id, :event_id, :ticket_tier_id, :quantity, :total_amount, :discount_amount,
			:points_used, :coupon_id, :status, :proof_url, :created_at, :updated_at, :expires_at)
	`, tr)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *postgresTx) Update(ctx context.Context, tr *Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, proof_url = $3, expires_at = $4, updated_at = $5
		WHERE id = $1
	`, tr.ID, string(tr.Status), tr.ProofURL, tr.ExpiresAt, tr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (t *postgresTx) Ledger() ledger.Ledger {
	return t.ledger
}

func getTransaction(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*Transaction, error) {
	var tr Transaction
	if err := sqlx.GetContext(ctx, q, &tr, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tr, nil
}
