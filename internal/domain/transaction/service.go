package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/ledger"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/metrics"
	"github.com/eventify/eventify-api/internal/pkg/storage"
)

const roleOrganizer = string(user.RoleOrganizer)

// Actor is the authenticated caller
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsOrganizer returns true for event organizers
func (a Actor) IsOrganizer() bool {
	return a.Role == roleOrganizer
}

// CreateInput is a validated purchase request
type CreateInput struct {
	EventID    uuid.UUID
	TierID     uuid.UUID
	Quantity   int
	PointsUsed int64
	CouponCode string
}

// guard inspects the locked row before the transition is resolved
type guard func(ctx context.Context, tx Tx, t *Transaction, now time.Time) error

// Service drives the purchase lifecycle
type Service struct {
	store Store
	now   func() time.Time

	paymentWindow      time.Duration
	confirmationWindow time.Duration

	proofs         storage.ProofStore
	proofUploadTTL time.Duration

	mailer      Mailer
	publisher   Publisher
	frontendURL string
	notifyWG    sync.WaitGroup
}

// NewService creates transaction service
func NewService(store Store) *Service {
	return &Service{
		store:              store,
		now:                time.Now,
		paymentWindow:      DefaultPaymentWindow,
		confirmationWindow: DefaultConfirmationWindow,
		proofUploadTTL:     15 * time.Minute,
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetWindows overrides the payment and confirmation deadlines
func (s *Service) SetWindows(payment, confirmation time.Duration) {
	if payment > 0 {
		s.paymentWindow = payment
	}
	if confirmation > 0 {
		s.confirmationWindow = confirmation
	}
}

// SetProofStore enables presigned proof uploads and proof verification
func (s *Service) SetProofStore(p storage.ProofStore, uploadTTL time.Duration) {
	s.proofs = p
	if uploadTTL > 0 {
		s.proofUploadTTL = uploadTTL
	}
}

// SetNotifiers wires the outbound channels. Either may be nil.
func (s *Service) SetNotifiers(mailer Mailer, publisher Publisher, frontendURL string) {
	s.mailer = mailer
	s.publisher = publisher
	s.frontendURL = frontendURL
}

// Wait blocks until in-flight notifications finish
func (s *Service) Wait() {
	s.notifyWG.Wait()
}

// Create validates a purchase and reserves seats, points and the coupon in
// one database transaction.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Transaction, error) {
	if in.Quantity < 1 || in.PointsUsed < 0 {
		return nil, ErrInvalidInput
	}

	now := s.now()
	var created *Transaction

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		ev, err := tx.GetEvent(ctx, in.EventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return event.ErrEventNotFound
		}

		tier, err := tx.GetTierForUpdate(ctx, in.TierID)
		if err != nil {
			return err
		}
		if tier == nil || tier.EventID != ev.ID {
			return event.ErrTierNotFound
		}
		if tier.Available() < in.Quantity {
			return &SeatsError{Available: tier.Available()}
		}

		if in.PointsUsed > 0 {
			buyer, err := tx.GetUserForUpdate(ctx, actor.ID)
			if err != nil {
				return err
			}
			if buyer == nil {
				return user.ErrUserNotFound
			}
			if buyer.Points < in.PointsUsed {
				return ErrInsufficientPoints
			}
		}

		var c *coupon.Coupon
		if in.CouponCode != "" {
			c, err = tx.GetCouponByCodeForUpdate(ctx, in.CouponCode)
			if err != nil {
				return err
			}
			if err := coupon.CheckForPurchase(c, ev.ID, now); err != nil {
				return err
			}
		}

		base := tier.Price * int64(in.Quantity)
		discount := coupon.Discount(c, base)
		total := base - discount - in.PointsUsed
		if total < 0 {
			total = 0
		}

		t := &Transaction{
			ID:             uuid.New(),
			UserID:         actor.ID,
			EventID:        ev.ID,
			TicketTierID:   tier.ID,
			Quantity:       in.Quantity,
			TotalAmount:    total,
			DiscountAmount: discount,
			PointsUsed:     in.PointsUsed,
			Status:         StatusWaitingPayment,
			CreatedAt:      now,
			UpdatedAt:      now,
			ExpiresAt:      sql.NullTime{Time: now.Add(s.paymentWindow), Valid: true},
		}
		if c != nil {
			t.CouponID = uuid.NullUUID{UUID: c.ID, Valid: true}
		}

		if err := ledger.Reserve(ctx, tx.Ledger(), t.Reservation()); err != nil {
			return reserveError(err, tier)
		}
		if err := tx.Insert(ctx, t); err != nil {
			return err
		}

		created = t
		return nil
	})
	if err != nil {
		metrics.ObserveCreate(createOutcome(err))
		return nil, err
	}

	metrics.ObserveCreate("created")
	logger.FromContext(ctx).Info().
		Str("transaction_id", created.ID.String()).
		Str("tier_id", created.TicketTierID.String()).
		Int("quantity", created.Quantity).
		Msg("Transaction created")

	s.notify(created, "")
	return created, nil
}

// reserveError maps a ledger bound hit to the error the buyer should see.
// The tier row is locked, so seat exhaustion here means the schema and the
// lock disagree; report it the same way as the precheck.
func reserveError(err error, tier *event.TicketTier) error {
	switch {
	case errors.Is(err, ledger.ErrSeatsExhausted):
		return &SeatsError{Available: tier.Available()}
	case errors.Is(err, ledger.ErrInsufficientPoints):
		return ErrInsufficientPoints
	case errors.Is(err, ledger.ErrCouponExhausted):
		return coupon.ErrCouponUsageLimit
	}
	return err
}

func createOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientSeats):
		return "sold_out"
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrCouponUsageLimit),
		errors.Is(err, coupon.ErrCouponWrongEvent):
		return "coupon_rejected"
	case errors.Is(err, event.ErrEventNotFound), errors.Is(err, event.ErrTierNotFound):
		return "not_found"
	}
	return "error"
}

// apply is the single place where a transaction changes status. It locks
// the row, runs check, resolves the transition, applies its compensation
// and deadline, persists, commits, and only then emits notifications.
func (s *Service) apply(ctx context.Context, id uuid.UUID, ev Event, check guard, patch func(t *Transaction)) (*Transaction, error) {
	now := s.now()

	var (
		result *Transaction
		from   Status
		tr     Transition
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}

		if check != nil {
			if err := check(ctx, tx, t, now); err != nil {
				return err
			}
		}

		tr, err = Resolve(t.Status, ev)
		if err != nil {
			return err
		}
		from = t.Status

		if tr.Compensation == CompensationRelease {
			if err := ledger.Release(ctx, tx.Ledger(), t.Reservation()); err != nil {
				return fmt.Errorf("compensate transaction %s: %w", t.ID, err)
			}
		}

		t.Status = tr.To
		switch tr.Deadline {
		case DeadlineClear:
			t.ExpiresAt = sql.NullTime{}
		case DeadlineConfirmation:
			t.ExpiresAt = sql.NullTime{Time: t.CreatedAt.Add(s.confirmationWindow), Valid: true}
		}
		if patch != nil {
			patch(t)
		}
		t.UpdatedAt = now

		if err := tx.Update(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveTransition(string(ev), string(from), string(tr.To))
	logger.FromContext(ctx).Info().
		Str("transaction_id", result.ID.String()).
		Str("event", string(ev)).
		Str("from", string(from)).
		Str("to", string(tr.To)).
		Msg("Transaction transitioned")

	s.notify(result, ev)
	return result, nil
}

func buyerOnly(actor Actor, msg string) guard {
	return func(_ context.Context, _ Tx, t *Transaction, _ time.Time) error {
		if t.UserID != actor.ID {
			return forbidden(msg)
		}
		return nil
	}
}

func eventOwnerOnly(actor Actor, msg string) guard {
	return func(ctx context.Context, tx Tx, t *Transaction, _ time.Time) error {
		ev, err := tx.GetEvent(ctx, t.EventID)
		if err != nil {
			return err
		}
		if ev == nil || !ev.IsOwnedBy(actor.ID) {
			return forbidden(msg)
		}
		return nil
	}
}

// UploadProof records the buyer's payment proof and moves the purchase to
// WAITING_CONFIRMATION. Proofs that point into our bucket must exist.
func (s *Service) UploadProof(ctx context.Context, actor Actor, id uuid.UUID, proofURL string) (*Transaction, error) {
	const notOwner = "You can only upload proof for your own transactions"

	if s.proofs != nil {
		if key, ok := s.proofs.KeyFromURL(proofURL); ok {
			current, err := s.store.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if current == nil {
				return nil, ErrTransactionNotFound
			}
			if current.UserID != actor.ID {
				return nil, forbidden(notOwner)
			}
			if _, err := Resolve(current.Status, EventPay); err != nil {
				return nil, err
			}

			exists, err := s.proofs.Exists(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("verify proof: %w", err)
			}
			if !exists {
				return nil, ErrProofNotFound
			}
		}
	}

	return s.apply(ctx, id, EventPay, buyerOnly(actor, notOwner), func(t *Transaction) {
		t.ProofURL = sql.NullString{String: proofURL, Valid: true}
	})
}

// Accept confirms the payment; the reservation becomes permanent
func (s *Service) Accept(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	if !actor.IsOrganizer() {
		return nil, forbidden("Only organizers can accept transactions")
	}
	return s.apply(ctx, id, EventAccept, eventOwnerOnly(actor, "You can only accept transactions for your own events"), nil)
}

// Reject refuses a pending purchase and releases everything it holds
func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	if !actor.IsOrganizer() {
		return nil, forbidden("Only organizers can reject transactions")
	}
	return s.apply(ctx, id, EventReject, eventOwnerOnly(actor, "You can only reject transactions for your own events"), nil)
}

// Cancel lets the buyer withdraw a pending purchase
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	return s.apply(ctx, id, EventCancel, buyerOnly(actor, "You can only cancel your own transactions"), nil)
}

// Expire releases an unpaid purchase whose payment deadline has passed.
// ErrNotDue means the deadline is still ahead.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.apply(ctx, id, EventExpire, func(_ context.Context, _ Tx, t *Transaction, now time.Time) error {
		if t.Status == StatusWaitingPayment && !t.PaymentOverdue(now) {
			return ErrNotDue
		}
		return nil
	}, nil)
}

// AutoCancel releases a purchase the organizer left unconfirmed past the
// confirmation window
func (s *Service) AutoCancel(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.apply(ctx, id, EventAutoCancel, func(_ context.Context, _ Tx, t *Transaction, now time.Time) error {
		if t.Status == StatusWaitingConfirmation && !t.CreatedAt.Before(now.Add(-s.confirmationWindow)) {
			return ErrNotDue
		}
		return nil
	}, nil)
}

// DueForExpiry lists unpaid purchases past their payment deadline
func (s *Service) DueForExpiry(ctx context.Context) ([]uuid.UUID, error) {
	return s.store.ListExpiredPayments(ctx, s.now())
}

// DueForAutoCancel lists unconfirmed purchases older than the confirmation window
func (s *Service) DueForAutoCancel(ctx context.Context) ([]uuid.UUID, error) {
	return s.store.ListStaleConfirmations(ctx, s.now().Add(-s.confirmationWindow))
}

// Get returns a transaction visible to the buyer or the event's organizer
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.UserID == actor.ID {
		return t, nil
	}

	ev, err := s.store.GetEvent(ctx, t.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil || !ev.IsOwnedBy(actor.ID) {
		return nil, forbidden("You can only view your own transactions")
	}
	return t, nil
}

// ListMine pages the buyer's purchase history
func (s *Service) ListMine(ctx context.Context, actor Actor, filter ListFilter) ([]*Transaction, int, error) {
	filter.Normalize()
	return s.store.ListByUser(ctx, actor.ID, filter)
}

// ListForEvent pages the purchases of an event for its organizer
func (s *Service) ListForEvent(ctx context.Context, actor Actor, eventID uuid.UUID, filter ListFilter) ([]*Transaction, int, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if ev == nil {
		return nil, 0, event.ErrEventNotFound
	}
	if !ev.IsOwnedBy(actor.ID) {
		return nil, 0, forbidden("You can only view transactions for your own events")
	}

	filter.Normalize()
	return s.store.ListByEvent(ctx, eventID, filter)
}

var proofExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ProofUploadURL issues a presigned upload URL for the buyer's payment proof
func (s *Service) ProofUploadURL(ctx context.Context, actor Actor, id uuid.UUID, contentType string) (*ProofUploadURLResponse, error) {
	if s.proofs == nil {
		return nil, ErrProofStorageMissing
	}

	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	if t.UserID != actor.ID {
		return nil, forbidden("You can only upload proof for your own transactions")
	}
	if _, err := Resolve(t.Status, EventPay); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("proofs/%s/%s%s", t.ID, uuid.NewString(), proofExtensions[contentType])
	uploadURL, err := s.proofs.PresignPut(ctx, key, contentType, s.proofUploadTTL)
	if err != nil {
		return nil, err
	}

	return &ProofUploadURLResponse{
		UploadURL: uploadURL,
		ProofURL:  s.proofs.PublicURL(key),
		ExpiresAt: s.now().Add(s.proofUploadTTL),
	}, nil
}
