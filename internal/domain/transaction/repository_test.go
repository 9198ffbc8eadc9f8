package transaction_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/pkg/database/dbtest"
)

func TestPostgresPurchaseLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, 4, 50000, 10000, 1)
	ctx := context.Background()

	svc := transaction.NewService(transaction.NewPostgresStore(db))
	buyer := transaction.Actor{ID: f.BuyerID, Role: string(user.RoleCustomer)}
	organizer := transaction.Actor{ID: f.OrganizerID, Role: string(user.RoleOrganizer)}

	tx, err := svc.Create(ctx, buyer, transaction.CreateInput{
		EventID: f.EventID, TierID: f.TierID, Quantity: 2, PointsUsed: 4000, CouponCode: f.CouponCode,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.TotalAmount != 100000-1000-4000 {
		t.Fatalf("total = %d", tx.TotalAmount)
	}

	_, err = svc.Create(ctx, buyer, transaction.CreateInput{
		EventID: f.EventID, TierID: f.TierID, Quantity: 1, CouponCode: f.CouponCode,
	})
	if !errors.Is(err, coupon.ErrCouponUsageLimit) {
		t.Fatalf("second coupon use err = %v, want usage limit", err)
	}

	if _, err := svc.UploadProof(ctx, buyer, tx.ID, "https://cdn.example.com/p.jpg"); err != nil {
		t.Fatalf("UploadProof: %v", err)
	}

	got, err := svc.Get(ctx, organizer, tx.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != transaction.StatusWaitingConfirmation || !got.ProofURL.Valid || !got.ExpiresAt.Valid {
		t.Fatalf("stored = %+v", got)
	}

	if _, err := svc.Reject(ctx, organizer, tx.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	var (
		sold   int
		points int64
		used   int
	)
	if err := db.GetContext(ctx, &sold, `SELECT sold FROM ticket_tiers WHERE id = $1`, f.TierID); err != nil {
		t.Fatal(err)
	}
	if err := db.GetContext(ctx, &points, `SELECT points FROM users WHERE id = $1`, f.BuyerID); err != nil {
		t.Fatal(err)
	}
	if err := db.GetContext(ctx, &used, `SELECT used_count FROM coupons WHERE id = $1`, f.CouponID); err != nil {
		t.Fatal(err)
	}
	if sold != 0 || points != 10000 || used != 0 {
		t.Fatalf("sold/points/used = %d/%d/%d after reject", sold, points, used)
	}

	items, total, err := svc.ListForEvent(ctx, organizer, f.EventID, transaction.ListFilter{Status: transaction.StatusRejected})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("ListForEvent = %d items, total %d, err %v", len(items), total, err)
	}
}

func TestPostgresExpirySweepQueries(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, 3, 1000, 0, 1)
	ctx := context.Background()

	now := time.Now().UTC()
	svc := transaction.NewService(transaction.NewPostgresStore(db))
	svc.SetClock(func() time.Time { return now })
	buyer := transaction.Actor{ID: f.BuyerID, Role: string(user.RoleCustomer)}

	tx, err := svc.Create(ctx, buyer, transaction.CreateInput{EventID: f.EventID, TierID: f.TierID, Quantity: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(3 * time.Hour)
	due, err := svc.DueForExpiry(ctx)
	if err != nil {
		t.Fatalf("DueForExpiry: %v", err)
	}
	found := false
	for _, id := range due {
		found = found || id == tx.ID
	}
	if !found {
		t.Fatalf("transaction %s not listed as due", tx.ID)
	}

	expired, err := svc.Expire(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if expired.Status != transaction.StatusExpired || expired.ExpiresAt.Valid {
		t.Fatalf("expired = %+v", expired)
	}
}

func TestPostgresCreateNeverOversells(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, 5, 1000, 0, 1)
	svc := transaction.NewService(transaction.NewPostgresStore(db))
	buyer := transaction.Actor{ID: f.BuyerID, Role: string(user.RoleCustomer)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), buyer, transaction.CreateInput{
				EventID: f.EventID, TierID: f.TierID, Quantity: 1,
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, transaction.ErrInsufficientSeats) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	var sold int
	if err := db.Get(&sold, `SELECT sold FROM ticket_tiers WHERE id = $1`, f.TierID); err != nil {
		t.Fatal(err)
	}
	if ok != 5 || sold != 5 {
		t.Fatalf("ok = %d sold = %d, want 5/5", ok, sold)
	}
}
