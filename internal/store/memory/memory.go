// Package memory is an in-process implementation of the transaction and
// points stores. All writes go through one lock and a snapshot that is
// restored when the unit of work fails, which gives the same all-or-nothing
// behaviour as a database transaction. Used by tests and local tooling.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/ledger"
	"github.com/eventify/eventify-api/internal/domain/points"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/domain/user"
)

// Store holds every table the purchase flow touches
type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]user.User
	events       map[uuid.UUID]event.Event
	tiers        map[uuid.UUID]event.TicketTier
	coupons      map[uuid.UUID]coupon.Coupon
	transactions map[uuid.UUID]transaction.Transaction
	grants       map[uuid.UUID]points.Grant

	faults map[string]error
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]user.User),
		events:       make(map[uuid.UUID]event.Event),
		tiers:        make(map[uuid.UUID]event.TicketTier),
		coupons:      make(map[uuid.UUID]coupon.Coupon),
		transactions: make(map[uuid.UUID]transaction.Transaction),
		grants:       make(map[uuid.UUID]points.Grant),
		faults:       make(map[string]error),
	}
}

type snapshot struct {
	users        map[uuid.UUID]user.User
	events       map[uuid.UUID]event.Event
	tiers        map[uuid.UUID]event.TicketTier
	coupons      map[uuid.UUID]coupon.Coupon
	transactions map[uuid.UUID]transaction.Transaction
	grants       map[uuid.UUID]points.Grant
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:        cloneMap(s.users),
		events:       cloneMap(s.events),
		tiers:        cloneMap(s.tiers),
		coupons:      cloneMap(s.coupons),
		transactions: cloneMap(s.transactions),
		grants:       cloneMap(s.grants),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.events = snap.events
	s.tiers = snap.tiers
	s.coupons = snap.coupons
	s.transactions = snap.transactions
	s.grants = snap.grants
}

// withinTx serializes units of work and rolls back on error
func (s *Store) withinTx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// FailNext makes the next call of op inside a unit of work return err.
// Ops: "insert", "update", "sold", "points", "coupon", "delete_grants", "set_balance".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

// --- seeding and inspection ---

func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutEvent(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *Store) PutTier(t event.TicketTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[t.ID] = t
}

func (s *Store) PutCoupon(c coupon.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.ID] = c
}

func (s *Store) PutTransaction(t transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
}

func (s *Store) PutGrant(g points.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ID] = g
}

func (s *Store) User(id uuid.UUID) (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) Tier(id uuid.UUID) (event.TicketTier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[id]
	return t, ok
}

func (s *Store) Coupon(id uuid.UUID) (coupon.Coupon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[id]
	return c, ok
}

func (s *Store) Transaction(id uuid.UUID) (transaction.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	return t, ok
}

// AllTransactions returns every stored transaction
func (s *Store) AllTransactions() []transaction.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]transaction.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	return out
}

// GrantCount returns how many grants are stored
func (s *Store) GrantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}

// --- transaction.Store ---

// Transactions returns the transaction.Store view
func (s *Store) Transactions() transaction.Store {
	return transactionStore{s: s}
}

type transactionStore struct {
	s *Store
}

func (ts transactionStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx transaction.Tx) error) error {
	return ts.s.withinTx(func() error {
		return fn(ctx, &txView{s: ts.s})
	})
}

func (ts transactionStore) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	if t, ok := ts.s.transactions[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (ts transactionStore) ListByUser(_ context.Context, userID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	return ts.list(func(t *transaction.Transaction) bool { return t.UserID == userID }, filter)
}

func (ts transactionStore) ListByEvent(_ context.Context, eventID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	return ts.list(func(t *transaction.Transaction) bool { return t.EventID == eventID }, filter)
}

func (ts transactionStore) list(match func(t *transaction.Transaction) bool, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	var all []*transaction.Transaction
	for _, t := range ts.s.transactions {
		t := t
		if !match(&t) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		all = append(all, &t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (ts transactionStore) ListExpiredPayments(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	var ids []uuid.UUID
	for _, t := range ts.s.transactions {
		if t.Status == transaction.StatusWaitingPayment && t.ExpiresAt.Valid && t.ExpiresAt.Time.Before(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (ts transactionStore) ListStaleConfirmations(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	var ids []uuid.UUID
	for _, t := range ts.s.transactions {
		if t.Status == transaction.StatusWaitingConfirmation && t.CreatedAt.Before(cutoff) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (ts transactionStore) GetEvent(_ context.Context, id uuid.UUID) (*event.Event, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	if e, ok := ts.s.events[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (ts transactionStore) GetUser(_ context.Context, id uuid.UUID) (*user.User, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	if u, ok := ts.s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

// txView runs with the store lock held
type txView struct {
	s *Store
}

func (v *txView) GetEvent(_ context.Context, id uuid.UUID) (*event.Event, error) {
	if e, ok := v.s.events[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (v *txView) GetTierForUpdate(_ context.Context, id uuid.UUID) (*event.TicketTier, error) {
	if t, ok := v.s.tiers[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (v *txView) GetUserForUpdate(_ context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := v.s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (v *txView) GetCouponByCodeForUpdate(_ context.Context, code string) (*coupon.Coupon, error) {
	for _, c := range v.s.coupons {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (v *txView) GetForUpdate(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	if t, ok := v.s.transactions[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (v *txView) Insert(_ context.Context, t *transaction.Transaction) error {
	if err := v.s.fault("insert"); err != nil {
		return err
	}
	if _, exists := v.s.transactions[t.ID]; exists {
		return errors.New("duplicate transaction id")
	}
	v.s.transactions[t.ID] = *t
	return nil
}

func (v *txView) Update(_ context.Context, t *transaction.Transaction) error {
	if err := v.s.fault("update"); err != nil {
		return err
	}
	if _, exists := v.s.transactions[t.ID]; !exists {
		return transaction.ErrTransactionNotFound
	}
	v.s.transactions[t.ID] = *t
	return nil
}

func (v *txView) Ledger() ledger.Ledger {
	return v
}

// --- ledger.Ledger, same bounds as the guarded SQL updates ---

func (v *txView) AdjustSold(_ context.Context, tierID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	if err := v.s.fault("sold"); err != nil {
		return err
	}
	t, ok := v.s.tiers[tierID]
	if !ok {
		return ledger.ErrRowNotFound
	}
	next := t.Sold + delta
	if next > t.Quantity {
		return ledger.ErrSeatsExhausted
	}
	if next < 0 {
		return ledger.ErrSeatsUnderflow
	}
	t.Sold = next
	v.s.tiers[tierID] = t
	return nil
}

func (v *txView) AdjustPoints(_ context.Context, userID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	if err := v.s.fault("points"); err != nil {
		return err
	}
	u, ok := v.s.users[userID]
	if !ok {
		return ledger.ErrRowNotFound
	}
	if u.Points+delta < 0 {
		return ledger.ErrInsufficientPoints
	}
	u.Points += delta
	v.s.users[userID] = u
	return nil
}

func (v *txView) AdjustCouponUsage(_ context.Context, couponID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	if err := v.s.fault("coupon"); err != nil {
		return err
	}
	c, ok := v.s.coupons[couponID]
	if !ok {
		return ledger.ErrRowNotFound
	}
	next := c.UsedCount + delta
	if next > c.UsageLimit {
		return ledger.ErrCouponExhausted
	}
	if next < 0 {
		return ledger.ErrCouponUnderflow
	}
	c.UsedCount = next
	v.s.coupons[couponID] = c
	return nil
}

// --- points.Store ---

// Points returns the points.Store view
func (s *Store) Points() points.Store {
	return pointsStore{s: s}
}

type pointsStore struct {
	s *Store
}

func (ps pointsStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx points.Tx) error) error {
	return ps.s.withinTx(func() error {
		return fn(ctx, &pointsTx{s: ps.s})
	})
}

func (ps pointsStore) ListExpiredGrants(_ context.Context, now time.Time) ([]points.Grant, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	var out []points.Grant
	for _, g := range ps.s.grants {
		if g.ExpiresAt.Before(now) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (ps pointsStore) ListActiveGrants(_ context.Context, userID uuid.UUID, now time.Time) ([]points.Grant, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	var out []points.Grant
	for _, g := range ps.s.grants {
		if g.UserID == userID && !g.ExpiresAt.Before(now) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (ps pointsStore) GetBalance(_ context.Context, userID uuid.UUID) (int64, bool, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	u, ok := ps.s.users[userID]
	return u.Points, ok, nil
}

type pointsTx struct {
	s *Store
}

func (t *pointsTx) DeleteGrants(_ context.Context, ids []uuid.UUID) error {
	if err := t.s.fault("delete_grants"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(t.s.grants, id)
	}
	return nil
}

func (t *pointsTx) SumActiveGrants(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var sum int64
	for _, g := range t.s.grants {
		if g.UserID == userID && !g.ExpiresAt.Before(now) {
			sum += g.Amount
		}
	}
	return sum, nil
}

func (t *pointsTx) SetBalance(_ context.Context, userID uuid.UUID, balance int64) error {
	if err := t.s.fault("set_balance"); err != nil {
		return err
	}
	u, ok := t.s.users[userID]
	if !ok {
		return points.ErrUserNotFound
	}
	u.Points = balance
	t.s.users[userID] = u
	return nil
}
