package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a published event owned by one organizer
type Event struct {
	ID          uuid.UUID `db:"id"`
	OrganizerID uuid.UUID `db:"organizer_id"`
	Name        string    `db:"name"`
	StartDate   time.Time `db:"start_date"`
	CreatedAt   time.Time `db:"created_at"`
}

// IsOwnedBy reports whether userID organizes the event
func (e *Event) IsOwnedBy(userID uuid.UUID) bool {
	return e.OrganizerID == userID
}

// TicketTier is a priced capacity bucket of an event.
// Invariant: 0 <= Sold <= Quantity.
type TicketTier struct {
	ID       uuid.UUID `db:"id"`
	EventID  uuid.UUID `db:"event_id"`
	Name     string    `db:"name"`
	Price    int64     `db:"price"`
	Quantity int       `db:"quantity"`
	Sold     int       `db:"sold"`
}

// Available returns seats that can still be reserved
func (t *TicketTier) Available() int {
	if t.Sold >= t.Quantity {
		return 0
	}
	return t.Quantity - t.Sold
}
