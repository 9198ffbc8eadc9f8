package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service answers read-only coupon questions
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates coupon service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Validate previews a coupon against an amount for an event. It never
// touches usage counters; an invalid coupon is a normal answer, not an error.
func (s *Service) Validate(ctx context.Context, code string, eventID uuid.UUID, amount int64) (*ValidateResponse, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	switch {
	case c == nil:
		return rejected(amount, "Coupon not found"), nil
	case !c.IsActive:
		return rejected(amount, "Coupon is not active"), nil
	case c.IsExpired(s.now()):
		return rejected(amount, "Coupon has expired"), nil
	case c.IsExhausted():
		return rejected(amount, "Coupon usage limit reached"), nil
	case !c.AppliesTo(eventID):
		return rejected(amount, "This coupon is not valid for this event"), nil
	case amount < c.MinPurchase:
		return rejected(amount, fmt.Sprintf("Minimum purchase of %d required", c.MinPurchase)), nil
	}

	discount := Discount(c, amount)
	final := amount - discount
	if final < 0 {
		final = 0
	}

	return &ValidateResponse{
		IsValid:        true,
		DiscountAmount: discount,
		FinalAmount:    final,
	}, nil
}
