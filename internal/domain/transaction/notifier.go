package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eventify/eventify-api/internal/pkg/email"
	"github.com/eventify/eventify-api/internal/pkg/metrics"
	"github.com/eventify/eventify-api/internal/pkg/realtime"
)

const notifyTimeout = 10 * time.Second

// Realtime message types pushed to the buyer
const (
	MessageCreated = "transaction.created"
	MessageUpdated = "transaction.updated"
)

// Mailer sends the buyer-facing emails. Delivery is best effort.
type Mailer interface {
	SendTransactionAccepted(to string, d email.TransactionDetails)
	SendTransactionRejected(to string, d email.TransactionDetails)
}

// Publisher pushes live updates to a user's open connections
type Publisher interface {
	SendToUser(ctx context.Context, userID uuid.UUID, msg realtime.Message) error
}

// notify fires after commit and never reports back to the caller. ev is
// empty for a newly created transaction.
func (s *Service) notify(t *Transaction, ev Event) {
	if s.mailer == nil && s.publisher == nil {
		return
	}

	snapshot := *t
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if s.publisher != nil {
			msgType := MessageUpdated
			if ev == "" {
				msgType = MessageCreated
			}
			err := s.publisher.SendToUser(ctx, snapshot.UserID, realtime.Message{
				Type: msgType,
				Data: ResponseFromEntity(&snapshot),
			})
			if err != nil {
				metrics.ObserveNotificationFailure("realtime")
				log.Warn().Err(err).Str("transaction_id", snapshot.ID.String()).Msg("Failed to publish transaction update")
			}
		}

		if s.mailer != nil && (ev == EventAccept || ev == EventReject) {
			s.sendEmail(ctx, &snapshot, ev)
		}
	}()
}

func (s *Service) sendEmail(ctx context.Context, t *Transaction, ev Event) {
	buyer, err := s.store.GetUser(ctx, t.UserID)
	if err != nil || buyer == nil {
		metrics.ObserveNotificationFailure("email")
		log.Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("Cannot resolve buyer for notification")
		return
	}
	evt, err := s.store.GetEvent(ctx, t.EventID)
	if err != nil || evt == nil {
		metrics.ObserveNotificationFailure("email")
		log.Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("Cannot resolve event for notification")
		return
	}

	d := email.TransactionDetails{
		CustomerName:  buyer.Name,
		EventName:     evt.Name,
		TransactionID: t.ID.String(),
		Quantity:      t.Quantity,
		TotalAmount:   t.TotalAmount,
	}
	if s.frontendURL != "" {
		d.TransactionURL = s.frontendURL + "/transactions/" + t.ID.String()
	}

	switch ev {
	case EventAccept:
		s.mailer.SendTransactionAccepted(buyer.Email, d)
	case EventReject:
		d.SeatsReleased = t.Quantity
		d.PointsRefunded = t.PointsUsed
		d.CouponRestored = t.CouponID.Valid
		s.mailer.SendTransactionRejected(buyer.Email, d)
	}
}
