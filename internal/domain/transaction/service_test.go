package transaction_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/event"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/pkg/email"
	"github.com/eventify/eventify-api/internal/pkg/realtime"
	"github.com/eventify/eventify-api/internal/store/memory"
)

var start = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	st  *memory.Store
	svc *transaction.Service
	now time.Time

	buyer     transaction.Actor
	organizer transaction.Actor
	stranger  transaction.Actor

	eventID uuid.UUID
	tierID  uuid.UUID
	coupon  coupon.Coupon
}

// newFixture seeds one event with a 5-seat tier at 50000, a buyer holding
// 20000 points and a FIXED 5000 coupon with two uses scoped to the event.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		st:        memory.New(),
		now:       start,
		buyer:     transaction.Actor{ID: uuid.New(), Role: string(user.RoleCustomer)},
		organizer: transaction.Actor{ID: uuid.New(), Role: string(user.RoleOrganizer)},
		stranger:  transaction.Actor{ID: uuid.New(), Role: string(user.RoleOrganizer)},
		eventID:   uuid.New(),
		tierID:    uuid.New(),
	}

	f.st.PutUser(user.User{ID: f.buyer.ID, Email: "buyer@example.com", Name: "Buyer", Role: user.RoleCustomer, Points: 20000})
	f.st.PutUser(user.User{ID: f.organizer.ID, Email: "org@example.com", Name: "Organizer", Role: user.RoleOrganizer})
	f.st.PutUser(user.User{ID: f.stranger.ID, Email: "other@example.com", Name: "Other", Role: user.RoleOrganizer})
	f.st.PutEvent(event.Event{ID: f.eventID, OrganizerID: f.organizer.ID, Name: "Jazz Night", StartDate: start.AddDate(0, 1, 0)})
	f.st.PutTier(event.TicketTier{ID: f.tierID, EventID: f.eventID, Name: "Regular", Price: 50000, Quantity: 5})

	f.coupon = coupon.Coupon{
		ID:            uuid.New(),
		Code:          "JAZZ5K",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: 5000,
		UsageLimit:    2,
		ValidFrom:     start.Add(-24 * time.Hour),
		ValidUntil:    start.Add(24 * time.Hour),
		IsActive:      true,
		EventID:       uuid.NullUUID{UUID: f.eventID, Valid: true},
	}
	f.st.PutCoupon(f.coupon)

	f.svc = transaction.NewService(f.st.Transactions())
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, qty int, points int64, code string) *transaction.Transaction {
	t.Helper()
	tx, err := f.svc.Create(context.Background(), f.buyer, transaction.CreateInput{
		EventID:    f.eventID,
		TierID:     f.tierID,
		Quantity:   qty,
		PointsUsed: points,
		CouponCode: code,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tx
}

func (f *fixture) pay(t *testing.T, id uuid.UUID) *transaction.Transaction {
	t.Helper()
	tx, err := f.svc.UploadProof(context.Background(), f.buyer, id, "https://cdn.example.com/proof.jpg")
	if err != nil {
		t.Fatalf("UploadProof: %v", err)
	}
	return tx
}

// balances returns sold seats, buyer points and coupon uses
func (f *fixture) balances() (int, int64, int) {
	tier, _ := f.st.Tier(f.tierID)
	u, _ := f.st.User(f.buyer.ID)
	c, _ := f.st.Coupon(f.coupon.ID)
	return tier.Sold, u.Points, c.UsedCount
}

func (f *fixture) assertBalances(t *testing.T, sold int, points int64, used int) {
	t.Helper()
	gotSold, gotPoints, gotUsed := f.balances()
	if gotSold != sold || gotPoints != points || gotUsed != used {
		t.Fatalf("sold/points/coupon = %d/%d/%d, want %d/%d/%d", gotSold, gotPoints, gotUsed, sold, points, used)
	}
}

func TestCreateReservesEverything(t *testing.T) {
	f := newFixture(t)

	tx := f.create(t, 2, 10000, "JAZZ5K")

	if tx.Status != transaction.StatusWaitingPayment {
		t.Errorf("status = %s", tx.Status)
	}
	if tx.DiscountAmount != 5000 || tx.TotalAmount != 85000 {
		t.Errorf("discount/total = %d/%d, want 5000/85000", tx.DiscountAmount, tx.TotalAmount)
	}
	if !tx.ExpiresAt.Valid || !tx.ExpiresAt.Time.Equal(start.Add(2*time.Hour)) {
		t.Errorf("expiresAt = %v, want creation + 2h", tx.ExpiresAt)
	}
	if !tx.CouponID.Valid || tx.CouponID.UUID != f.coupon.ID {
		t.Errorf("couponId = %v", tx.CouponID)
	}
	f.assertBalances(t, 2, 10000, 1)

	stored, ok := f.st.Transaction(tx.ID)
	if !ok || stored.Status != transaction.StatusWaitingPayment {
		t.Fatalf("stored transaction = %+v", stored)
	}
}

func TestCreateTotalNeverNegative(t *testing.T) {
	f := newFixture(t)
	f.st.PutTier(event.TicketTier{ID: f.tierID, EventID: f.eventID, Name: "Cheap", Price: 3000, Quantity: 5})

	tx := f.create(t, 1, 20000, "JAZZ5K")

	if tx.TotalAmount != 0 {
		t.Errorf("total = %d, want 0", tx.TotalAmount)
	}
	if tx.DiscountAmount != 3000 {
		t.Errorf("discount = %d, want capped at base 3000", tx.DiscountAmount)
	}
	// points are consumed in full even when the total clamps
	f.assertBalances(t, 1, 0, 1)
}

func TestCreateRejections(t *testing.T) {
	otherEvent := uuid.New()
	otherTier := uuid.New()

	cases := []struct {
		name  string
		setup func(f *fixture)
		in    func(f *fixture) transaction.CreateInput
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown event",
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: uuid.New(), TierID: uuid.New(), Quantity: 1}
			},
			check: is(event.ErrEventNotFound),
		},
		{
			name: "tier of another event",
			setup: func(f *fixture) {
				f.st.PutEvent(event.Event{ID: otherEvent, OrganizerID: f.organizer.ID, Name: "Other"})
				f.st.PutTier(event.TicketTier{ID: otherTier, EventID: otherEvent, Price: 1, Quantity: 10})
			},
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: f.eventID, TierID: otherTier, Quantity: 1}
			},
			check: is(event.ErrTierNotFound),
		},
		{
			name: "seats checked before points and coupon",
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: f.eventID, TierID: f.tierID, Quantity: 6, PointsUsed: 999999, CouponCode: "NOPE"}
			},
			check: func(t *testing.T, err error) {
				var se *transaction.SeatsError
				if !errors.As(err, &se) || se.Available != 5 {
					t.Fatalf("err = %v, want SeatsError{5}", err)
				}
				if err.Error() != "Only 5 seats available" {
					t.Errorf("message = %q", err.Error())
				}
			},
		},
		{
			name: "points checked before coupon",
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: f.eventID, TierID: f.tierID, Quantity: 1, PointsUsed: 20001, CouponCode: "NOPE"}
			},
			check: is(transaction.ErrInsufficientPoints),
		},
		{
			name: "unknown coupon",
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: f.eventID, TierID: f.tierID, Quantity: 1, CouponCode: "NOPE"}
			},
			check: is(coupon.ErrCouponNotFound),
		},
		{
			name: "expired coupon",
			setup: func(f *fixture) {
				c := f.coupon
				c.ValidUntil = start.Add(-time.Minute)
				f.st.PutCoupon(c)
			},
			in:    couponInput,
			check: is(coupon.ErrCouponExpired),
		},
		{
			name: "inactive coupon",
			setup: func(f *fixture) {
				c := f.coupon
				c.IsActive = false
				f.st.PutCoupon(c)
			},
			in:    couponInput,
			check: is(coupon.ErrCouponInactive),
		},
		{
			name: "exhausted coupon",
			setup: func(f *fixture) {
				c := f.coupon
				c.UsedCount = c.UsageLimit
				f.st.PutCoupon(c)
			},
			in:    couponInput,
			check: is(coupon.ErrCouponUsageLimit),
		},
		{
			name: "coupon scoped to another event",
			setup: func(f *fixture) {
				c := f.coupon
				c.EventID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
				f.st.PutCoupon(c)
			},
			in:    couponInput,
			check: is(coupon.ErrCouponWrongEvent),
		},
		{
			name: "zero quantity",
			in: func(f *fixture) transaction.CreateInput {
				return transaction.CreateInput{EventID: f.eventID, TierID: f.tierID, Quantity: 0}
			},
			check: is(transaction.ErrInvalidInput),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			soldBefore, pointsBefore, usedBefore := f.balances()

			_, err := f.svc.Create(context.Background(), f.buyer, tc.in(f))
			tc.check(t, err)

			f.assertBalances(t, soldBefore, pointsBefore, usedBefore)
			if n := len(f.st.AllTransactions()); n != 0 {
				t.Errorf("%d transactions stored, want 0", n)
			}
		})
	}
}

func couponInput(f *fixture) transaction.CreateInput {
	return transaction.CreateInput{EventID: f.eventID, TierID: f.tierID, Quantity: 1, CouponCode: f.coupon.Code}
}

func is(target error) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		t.Helper()
		if !errors.Is(err, target) {
			t.Fatalf("err = %v, want %v", err, target)
		}
	}
}

func TestCreateRollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"points", "coupon", "insert"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			boom := errors.New("disk full")
			f.st.FailNext(op, boom)

			_, err := f.svc.Create(context.Background(), f.buyer, transaction.CreateInput{
				EventID: f.eventID, TierID: f.tierID, Quantity: 3, PointsUsed: 5000, CouponCode: f.coupon.Code,
			})
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}
			f.assertBalances(t, 0, 20000, 0)
			if n := len(f.st.AllTransactions()); n != 0 {
				t.Errorf("%d transactions stored, want 0", n)
			}
		})
	}
}

func TestCreateNeverOversells(t *testing.T) {
	f := newFixture(t)
	// points are not involved, so every worker only races for seats
	const workers = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.buyer, transaction.CreateInput{
				EventID: f.eventID, TierID: f.tierID, Quantity: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, transaction.ErrInsufficientSeats):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 5 || soldOut != workers-5 {
		t.Fatalf("ok/soldOut = %d/%d, want 5/%d", ok, soldOut, workers-5)
	}
	f.assertBalances(t, 5, 20000, 0)
}

func TestUploadProof(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 1, 0, "")

	f.now = start.Add(30 * time.Minute)
	_, err := f.svc.UploadProof(context.Background(), f.stranger, tx.ID, "https://cdn.example.com/x.jpg")
	var fe *transaction.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("stranger upload err = %v, want forbidden", err)
	}

	paid := f.pay(t, tx.ID)
	if paid.Status != transaction.StatusWaitingConfirmation {
		t.Errorf("status = %s", paid.Status)
	}
	if !paid.ProofURL.Valid || paid.ProofURL.String != "https://cdn.example.com/proof.jpg" {
		t.Errorf("proofUrl = %v", paid.ProofURL)
	}
	// the confirmation deadline runs from creation, not from payment
	if !paid.ExpiresAt.Valid || !paid.ExpiresAt.Time.Equal(start.Add(72*time.Hour)) {
		t.Errorf("expiresAt = %v, want creation + 72h", paid.ExpiresAt)
	}
	if !paid.UpdatedAt.Equal(f.now) {
		t.Errorf("updatedAt = %v", paid.UpdatedAt)
	}

	_, err = f.svc.UploadProof(context.Background(), f.buyer, tx.ID, "https://cdn.example.com/again.jpg")
	if !errors.Is(err, transaction.ErrInvalidStatus) {
		t.Fatalf("second upload err = %v, want invalid status", err)
	}

	_, err = f.svc.UploadProof(context.Background(), f.buyer, uuid.New(), "https://cdn.example.com/x.jpg")
	if !errors.Is(err, transaction.ErrTransactionNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestAccept(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 2, 1000, f.coupon.Code)

	// role is checked before the row is looked up
	_, err := f.svc.Accept(context.Background(), f.buyer, uuid.New())
	var fe *transaction.ForbiddenError
	if !errors.As(err, &fe) || fe.Message != "Only organizers can accept transactions" {
		t.Fatalf("customer accept err = %v", err)
	}

	_, err = f.svc.Accept(context.Background(), f.organizer, uuid.New())
	if !errors.Is(err, transaction.ErrTransactionNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}

	_, err = f.svc.Accept(context.Background(), f.organizer, tx.ID)
	if !errors.Is(err, transaction.ErrInvalidStatus) {
		t.Fatalf("accept unpaid err = %v, want invalid status", err)
	}

	f.pay(t, tx.ID)

	_, err = f.svc.Accept(context.Background(), f.stranger, tx.ID)
	if !errors.As(err, &fe) || fe.Message != "You can only accept transactions for your own events" {
		t.Fatalf("foreign organizer err = %v", err)
	}

	done, err := f.svc.Accept(context.Background(), f.organizer, tx.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if done.Status != transaction.StatusDone || done.ExpiresAt.Valid {
		t.Errorf("done = %+v", done)
	}
	f.assertBalances(t, 2, 19000, 1)

	for _, fn := range []func(context.Context, transaction.Actor, uuid.UUID) (*transaction.Transaction, error){
		f.svc.Accept, f.svc.Reject,
	} {
		if _, err := fn(context.Background(), f.organizer, tx.ID); !errors.Is(err, transaction.ErrInvalidStatus) {
			t.Errorf("transition out of DONE err = %v", err)
		}
	}
	if _, err := f.svc.Cancel(context.Background(), f.buyer, tx.ID); !errors.Is(err, transaction.ErrInvalidStatus) {
		t.Errorf("cancel DONE err = %v", err)
	}
}

func TestRejectAndCancelRelease(t *testing.T) {
	cases := []struct {
		name string
		pay  bool
		run  func(f *fixture, id uuid.UUID) (*transaction.Transaction, error)
		want transaction.Status
	}{
		{"reject unpaid", false, func(f *fixture, id uuid.UUID) (*transaction.Transaction, error) {
			return f.svc.Reject(context.Background(), f.organizer, id)
		}, transaction.StatusRejected},
		{"reject paid", true, func(f *fixture, id uuid.UUID) (*transaction.Transaction, error) {
			return f.svc.Reject(context.Background(), f.organizer, id)
		}, transaction.StatusRejected},
		{"cancel unpaid", false, func(f *fixture, id uuid.UUID) (*transaction.Transaction, error) {
			return f.svc.Cancel(context.Background(), f.buyer, id)
		}, transaction.StatusCanceled},
		{"cancel paid", true, func(f *fixture, id uuid.UUID) (*transaction.Transaction, error) {
			return f.svc.Cancel(context.Background(), f.buyer, id)
		}, transaction.StatusCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tx := f.create(t, 3, 7000, f.coupon.Code)
			if tc.pay {
				f.pay(t, tx.ID)
			}
			f.assertBalances(t, 3, 13000, 1)

			got, err := tc.run(f, tx.ID)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if got.Status != tc.want || got.ExpiresAt.Valid {
				t.Errorf("result = %s expires=%v", got.Status, got.ExpiresAt)
			}
			f.assertBalances(t, 0, 20000, 0)
		})
	}
}

func TestCancelRequiresBuyer(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 1, 0, "")

	_, err := f.svc.Cancel(context.Background(), f.organizer, tx.ID)
	var fe *transaction.ForbiddenError
	if !errors.As(err, &fe) || fe.Message != "You can only cancel your own transactions" {
		t.Fatalf("err = %v", err)
	}
	f.assertBalances(t, 1, 20000, 0)
}

func TestRejectRollsBackWhenUpdateFails(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 2, 4000, f.coupon.Code)

	boom := errors.New("lost connection")
	f.st.FailNext("update", boom)

	if _, err := f.svc.Reject(context.Background(), f.organizer, tx.ID); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	f.assertBalances(t, 2, 16000, 1)
	if stored, _ := f.st.Transaction(tx.ID); stored.Status != transaction.StatusWaitingPayment {
		t.Errorf("status = %s, want unchanged", stored.Status)
	}
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 2, 3000, f.coupon.Code)

	f.now = start.Add(time.Hour)
	if _, err := f.svc.Expire(context.Background(), tx.ID); !errors.Is(err, transaction.ErrNotDue) {
		t.Fatalf("early expire err = %v, want ErrNotDue", err)
	}
	due, _ := f.svc.DueForExpiry(context.Background())
	if len(due) != 0 {
		t.Fatalf("due = %v, want none", due)
	}

	f.now = start.Add(2*time.Hour + time.Second)
	due, err := f.svc.DueForExpiry(context.Background())
	if err != nil || len(due) != 1 || due[0] != tx.ID {
		t.Fatalf("due = %v err = %v", due, err)
	}

	expired, err := f.svc.Expire(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if expired.Status != transaction.StatusExpired || expired.ExpiresAt.Valid {
		t.Errorf("expired = %+v", expired)
	}
	f.assertBalances(t, 0, 20000, 0)

	if _, err := f.svc.Expire(context.Background(), tx.ID); !errors.Is(err, transaction.ErrInvalidStatus) {
		t.Errorf("second expire err = %v", err)
	}
}

func TestExpireSkipsPaidPurchase(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 1, 0, "")
	f.pay(t, tx.ID)

	f.now = start.Add(3 * time.Hour)
	if _, err := f.svc.Expire(context.Background(), tx.ID); !errors.Is(err, transaction.ErrInvalidStatus) {
		t.Fatalf("err = %v, want invalid status", err)
	}
	f.assertBalances(t, 1, 20000, 0)
}

func TestAutoCancel(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, 2, 2000, "")
	f.now = start.Add(time.Hour)
	f.pay(t, tx.ID)

	f.now = start.Add(71 * time.Hour)
	if _, err := f.svc.AutoCancel(context.Background(), tx.ID); !errors.Is(err, transaction.ErrNotDue) {
		t.Fatalf("early auto-cancel err = %v", err)
	}

	f.now = start.Add(72*time.Hour + time.Minute)
	due, err := f.svc.DueForAutoCancel(context.Background())
	if err != nil || len(due) != 1 || due[0] != tx.ID {
		t.Fatalf("due = %v err = %v", due, err)
	}

	got, err := f.svc.AutoCancel(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("AutoCancel: %v", err)
	}
	if got.Status != transaction.StatusCanceled {
		t.Errorf("status = %s", got.Status)
	}
	f.assertBalances(t, 0, 20000, 0)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, 1, 0, "")
	f.now = start.Add(time.Minute)
	second := f.create(t, 1, 0, "")
	if _, err := f.svc.Cancel(context.Background(), f.buyer, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), f.organizer, first.ID); err != nil {
		t.Errorf("organizer get: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.stranger, first.ID); !errors.Is(err, transaction.ErrForbidden) {
		t.Errorf("stranger get err = %v", err)
	}

	items, total, err := f.svc.ListMine(context.Background(), f.buyer, transaction.ListFilter{})
	if err != nil || total != 2 || items[0].ID != second.ID {
		t.Fatalf("ListMine = %v total=%d err=%v", items, total, err)
	}

	items, total, err = f.svc.ListForEvent(context.Background(), f.organizer, f.eventID,
		transaction.ListFilter{Status: transaction.StatusCanceled})
	if err != nil || total != 1 || items[0].ID != first.ID {
		t.Fatalf("ListForEvent = %v total=%d err=%v", items, total, err)
	}

	if _, _, err := f.svc.ListForEvent(context.Background(), f.stranger, f.eventID, transaction.ListFilter{}); !errors.Is(err, transaction.ErrForbidden) {
		t.Errorf("stranger list err = %v", err)
	}
	if _, _, err := f.svc.ListForEvent(context.Background(), f.organizer, uuid.New(), transaction.ListFilter{}); !errors.Is(err, event.ErrEventNotFound) {
		t.Errorf("unknown event err = %v", err)
	}
}

// The ledger must always equal what the live purchases hold.
func TestLedgerMatchesLivePurchases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, 1, 1000, f.coupon.Code)
	b := f.create(t, 2, 2000, "")
	c := f.create(t, 1, 0, f.coupon.Code)
	d := f.create(t, 1, 500, "")

	f.now = start.Add(10 * time.Minute)
	f.pay(t, a.ID)
	f.pay(t, b.ID)
	if _, err := f.svc.Accept(ctx, f.organizer, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Reject(ctx, f.organizer, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(ctx, f.buyer, c.ID); err != nil {
		t.Fatal(err)
	}
	f.now = start.Add(3 * time.Hour)
	if _, err := f.svc.Expire(ctx, d.ID); err != nil {
		t.Fatal(err)
	}

	var (
		seats  int
		points int64
		uses   int
	)
	for _, tx := range f.st.AllTransactions() {
		if tx.Status == transaction.StatusWaitingPayment || tx.Status == transaction.StatusWaitingConfirmation || tx.Status == transaction.StatusDone {
			seats += tx.Quantity
			points += tx.PointsUsed
			if tx.CouponID.Valid {
				uses++
			}
		}
	}
	f.assertBalances(t, seats, 20000-points, uses)
	f.assertBalances(t, 1, 19000, 1)
}

type fakeMailer struct {
	mu       sync.Mutex
	accepted []email.TransactionDetails
	rejected []email.TransactionDetails
	to       []string
}

func (m *fakeMailer) SendTransactionAccepted(to string, d email.TransactionDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.accepted = append(m.accepted, d)
}

func (m *fakeMailer) SendTransactionRejected(to string, d email.TransactionDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.rejected = append(m.rejected, d)
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []realtime.Message
	err  error
}

func (p *fakePublisher) SendToUser(_ context.Context, _ uuid.UUID, msg realtime.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return p.err
}

func TestNotificationsAfterCommit(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	f.svc.SetNotifiers(mailer, pub, "https://eventify.example.com")

	tx := f.create(t, 2, 3000, f.coupon.Code)
	f.pay(t, tx.ID)
	if _, err := f.svc.Reject(context.Background(), f.organizer, tx.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	f.svc.Wait()

	if len(pub.sent) != 3 {
		t.Fatalf("published %d messages, want 3", len(pub.sent))
	}
	created := 0
	for _, msg := range pub.sent {
		if msg.Type == transaction.MessageCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("%d created messages, want 1", created)
	}

	if len(mailer.rejected) != 1 || len(mailer.accepted) != 0 {
		t.Fatalf("mails accepted/rejected = %d/%d", len(mailer.accepted), len(mailer.rejected))
	}
	d := mailer.rejected[0]
	if mailer.to[0] != "buyer@example.com" || d.EventName != "Jazz Night" || d.CustomerName != "Buyer" {
		t.Errorf("mail = %s %+v", mailer.to[0], d)
	}
	if d.SeatsReleased != 2 || d.PointsRefunded != 3000 || !d.CouponRestored {
		t.Errorf("refund summary = %+v", d)
	}
	if !strings.HasSuffix(d.TransactionURL, "/transactions/"+tx.ID.String()) {
		t.Errorf("url = %s", d.TransactionURL)
	}
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	pub := &fakePublisher{err: errors.New("redis down")}
	f.svc.SetNotifiers(nil, pub, "")

	tx := f.create(t, 1, 0, "")
	f.svc.Wait()

	if stored, ok := f.st.Transaction(tx.ID); !ok || stored.Status != transaction.StatusWaitingPayment {
		t.Fatalf("stored = %+v", stored)
	}
}

type fakeProofs struct {
	objects map[string]bool
	signed  []string
}

func (p *fakeProofs) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	p.signed = append(p.signed, key)
	return "https://upload.example.com/" + key + "?ttl=" + ttl.String(), nil
}

func (p *fakeProofs) Exists(_ context.Context, key string) (bool, error) {
	return p.objects[key], nil
}

func (p *fakeProofs) PublicURL(key string) string {
	return "https://proofs.example.com/" + key
}

func (p *fakeProofs) KeyFromURL(url string) (string, bool) {
	const prefix = "https://proofs.example.com/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func TestProofUploadFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, 1, 0, "")

	if _, err := f.svc.ProofUploadURL(ctx, f.buyer, tx.ID, "image/png"); !errors.Is(err, transaction.ErrProofStorageMissing) {
		t.Fatalf("unconfigured err = %v", err)
	}

	proofs := &fakeProofs{objects: map[string]bool{}}
	f.svc.SetProofStore(proofs, 10*time.Minute)

	if _, err := f.svc.ProofUploadURL(ctx, f.stranger, tx.ID, "image/png"); !errors.Is(err, transaction.ErrForbidden) {
		t.Fatalf("stranger err = %v", err)
	}

	issued, err := f.svc.ProofUploadURL(ctx, f.buyer, tx.ID, "image/png")
	if err != nil {
		t.Fatalf("ProofUploadURL: %v", err)
	}
	key := proofs.signed[0]
	if !strings.HasPrefix(key, "proofs/"+tx.ID.String()+"/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("key = %s", key)
	}
	if !issued.ExpiresAt.Equal(start.Add(10 * time.Minute)) {
		t.Errorf("expiresAt = %v", issued.ExpiresAt)
	}

	// the object was never uploaded
	if _, err := f.svc.UploadProof(ctx, f.buyer, tx.ID, issued.ProofURL); !errors.Is(err, transaction.ErrProofNotFound) {
		t.Fatalf("missing object err = %v", err)
	}
	if stored, _ := f.st.Transaction(tx.ID); stored.Status != transaction.StatusWaitingPayment {
		t.Fatalf("status = %s, want unchanged", stored.Status)
	}

	proofs.objects[key] = true
	paid, err := f.svc.UploadProof(ctx, f.buyer, tx.ID, issued.ProofURL)
	if err != nil {
		t.Fatalf("UploadProof: %v", err)
	}
	if paid.ProofURL != (sql.NullString{String: issued.ProofURL, Valid: true}) {
		t.Errorf("proofUrl = %v", paid.ProofURL)
	}

	// external URLs skip the bucket check
	other := f.create(t, 1, 0, "")
	if _, err := f.svc.UploadProof(ctx, f.buyer, other.ID, "https://elsewhere.example.com/receipt.pdf"); err != nil {
		t.Fatalf("external proof: %v", err)
	}
}
