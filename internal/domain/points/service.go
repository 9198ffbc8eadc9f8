package points

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/metrics"
)

const sweepName = "expire_user_points"

// Service manages loyalty point balances
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates points service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ExpireGrants deletes lapsed grants and resyncs each affected user's
// balance to the sum of the grants that remain. Each user is one database
// transaction; a failure is logged and the sweep moves on.
func (s *Service) ExpireGrants(ctx context.Context) (ExpiryResult, error) {
	now := s.now()
	log := logger.FromContext(ctx)

	expired, err := s.store.ListExpiredGrants(ctx, now)
	if err != nil {
		return ExpiryResult{}, err
	}
	log.Info().Int("count", len(expired)).Msg("Found expired user points")

	byUser := make(map[uuid.UUID][]uuid.UUID)
	var order []uuid.UUID
	for _, g := range expired {
		if _, seen := byUser[g.UserID]; !seen {
			order = append(order, g.UserID)
		}
		byUser[g.UserID] = append(byUser[g.UserID], g.ID)
	}

	var result ExpiryResult
	for _, userID := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids := byUser[userID]
		var balance int64
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.DeleteGrants(ctx, ids); err != nil {
				return err
			}
			sum, err := tx.SumActiveGrants(ctx, userID, now)
			if err != nil {
				return err
			}
			balance = sum
			return tx.SetBalance(ctx, userID, sum)
		})
		if err != nil {
			result.Failed++
			metrics.ObserveSweepRecord(sweepName, "failed")
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to expire points for user")
			continue
		}

		result.Users++
		result.GrantsDeleted += len(ids)
		metrics.ObserveSweepRecord(sweepName, "processed")
		log.Info().
			Str("user_id", userID.String()).
			Int("grants", len(ids)).
			Int64("balance", balance).
			Msg("Expired points for user")
	}

	return result, nil
}

// Balance returns the user's points and the grants still active
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResponse, error) {
	balance, found, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}

	grants, err := s.store.ListActiveGrants(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	resp := &BalanceResponse{Balance: balance, Grants: make([]GrantResponse, 0, len(grants))}
	for _, g := range grants {
		resp.Grants = append(resp.Grants, GrantResponse{
			ID:        g.ID,
			Amount:    g.Amount,
			Source:    g.Source,
			ExpiresAt: g.ExpiresAt,
		})
	}
	return resp, nil
}
