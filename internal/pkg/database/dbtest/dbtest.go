// Package dbtest opens the Postgres database used by integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/eventify/eventify-api/migrations"
)

// Open connects to TEST_DATABASE_URL and applies the schema. The test is
// skipped when the variable is unset or the server is unreachable.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("db not available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// Fixture ids created by Seed
type Fixture struct {
	BuyerID     uuid.UUID
	OrganizerID uuid.UUID
	EventID     uuid.UUID
	TierID      uuid.UUID
	CouponID    uuid.UUID
	CouponCode  string
}

// Seed inserts an organizer, a buyer holding points, one event with a tier
// of the given capacity, and an event-wide coupon. Rows are removed when the
// test ends.
func Seed(t *testing.T, db *sqlx.DB, capacity int, price, points int64, couponLimit int) Fixture {
	t.Helper()

	f := Fixture{
		BuyerID:     uuid.New(),
		OrganizerID: uuid.New(),
		EventID:     uuid.New(),
		TierID:      uuid.New(),
		CouponID:    uuid.New(),
	}
	f.CouponCode = "T" + f.CouponID.String()[:8]
	now := time.Now()

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO users (id, email, name, role, points) VALUES ($1, $2, 'Organizer', 'ORGANIZER', 0)`,
			[]interface{}{f.OrganizerID, "org_" + f.OrganizerID.String()[:8] + "@test.com"}},
		{`INSERT INTO users (id, email, name, role, points) VALUES ($1, $2, 'Buyer', 'CUSTOMER', $3)`,
			[]interface{}{f.BuyerID, "buyer_" + f.BuyerID.String()[:8] + "@test.com", points}},
		{`INSERT INTO events (id, organizer_id, name, start_date) VALUES ($1, $2, 'Test Event', $3)`,
			[]interface{}{f.EventID, f.OrganizerID, now.Add(30 * 24 * time.Hour)}},
		{`INSERT INTO ticket_tiers (id, event_id, name, price, quantity, sold) VALUES ($1, $2, 'Regular', $3, $4, 0)`,
			[]interface{}{f.TierID, f.EventID, price, capacity}},
		{`INSERT INTO coupons (id, code, discount_type, discount_value, usage_limit, valid_from, valid_until, event_id)
			VALUES ($1, $2, 'FIXED', 1000, $3, $4, $5, $6)`,
			[]interface{}{f.CouponID, f.CouponCode, couponLimit, now.Add(-time.Hour), now.Add(24 * time.Hour), f.EventID}},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.query, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t.Cleanup(func() {
		db.Exec(`DELETE FROM transactions WHERE event_id = $1`, f.EventID)
		db.Exec(`DELETE FROM coupons WHERE id = $1`, f.CouponID)
		db.Exec(`DELETE FROM ticket_tiers WHERE id = $1`, f.TierID)
		db.Exec(`DELETE FROM events WHERE id = $1`, f.EventID)
		db.Exec(`DELETE FROM user_points WHERE user_id = $1`, f.BuyerID)
		db.Exec(`DELETE FROM users WHERE id IN ($1, $2)`, f.BuyerID, f.OrganizerID)
	})
	return f
}
