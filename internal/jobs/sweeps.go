package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eventify/eventify-api/internal/config"
	"github.com/eventify/eventify-api/internal/domain/points"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/pkg/metrics"
)

const (
	JobExpireTransactions     = "expire_transactions"
	JobAutoCancelTransactions = "auto_cancel_transactions"
	JobExpireUserPoints       = "expire_user_points"
)

// SweepResult counts what one sweep did with the records it selected
type SweepResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// sweep selects ids and then applies one transition per id, each in its own
// database transaction. A record that changed since selection is skipped; a
// failing record is logged and the sweep continues.
func sweep(
	ctx context.Context,
	name string,
	due func(ctx context.Context) ([]uuid.UUID, error),
	apply func(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error),
) (SweepResult, error) {
	ids, err := due(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := apply(ctx, id)
		switch {
		case err == nil:
			result.Processed++
			metrics.ObserveSweepRecord(name, "processed")
		case errors.Is(err, transaction.ErrNotDue), errors.Is(err, transaction.ErrInvalidStatus):
			result.Skipped++
			metrics.ObserveSweepRecord(name, "skipped")
		default:
			result.Failed++
			metrics.ObserveSweepRecord(name, "failed")
			log.Error().Err(err).Str("job", name).Str("transaction_id", id.String()).Msg("Sweep failed for transaction")
		}
	}

	if len(ids) > 0 {
		log.Info().
			Str("job", name).
			Int("processed", result.Processed).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Sweep finished")
	}
	return result, nil
}

// ExpireTransactions expires unpaid purchases past their payment deadline
func ExpireTransactions(svc *transaction.Service) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := sweep(ctx, JobExpireTransactions, svc.DueForExpiry, svc.Expire)
		return err
	}
}

// AutoCancelTransactions cancels purchases left unconfirmed too long
func AutoCancelTransactions(svc *transaction.Service) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := sweep(ctx, JobAutoCancelTransactions, svc.DueForAutoCancel, svc.AutoCancel)
		return err
	}
}

// ExpireUserPoints drops lapsed point grants and resyncs balances
func ExpireUserPoints(svc *points.Service) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := svc.ExpireGrants(ctx)
		return err
	}
}

// RegisterSweeps adds the three sweeps on their configured schedules
func RegisterSweeps(s *Scheduler, cfg *config.Config, txs *transaction.Service, pts *points.Service) {
	s.Add(Job{
		Name:       JobExpireTransactions,
		Schedule:   Every(cfg.ExpireInterval),
		Run:        ExpireTransactions(txs),
		RunOnStart: true,
	})
	s.Add(Job{
		Name:       JobAutoCancelTransactions,
		Schedule:   Every(cfg.AutoCancelInterval),
		Run:        AutoCancelTransactions(txs),
		RunOnStart: true,
	})
	s.Add(Job{
		Name:     JobExpireUserPoints,
		Schedule: DailyAt{Hour: cfg.PointExpiryHour, Minute: cfg.PointExpiryMinute, Loc: cfg.Location()},
		Run:      ExpireUserPoints(pts),
	})
}
