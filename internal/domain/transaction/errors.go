package transaction

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidInput        = errors.New("quantity must be at least 1 and points cannot be negative")
	ErrInsufficientSeats   = errors.New("insufficient seats")
	ErrInsufficientPoints  = errors.New("insufficient points balance")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrNotDue              = errors.New("transaction deadline not reached")
	ErrProofNotFound       = errors.New("payment proof file not found")
	ErrProofStorageMissing = errors.New("proof uploads are not configured")
)

// SeatsError reports how many seats were left when a purchase asked for more
type SeatsError struct {
	Available int
}

func (e *SeatsError) Error() string {
	return fmt.Sprintf("Only %d seats available", e.Available)
}

func (e *SeatsError) Unwrap() error { return ErrInsufficientSeats }

// ForbiddenError carries the message shown to the caller
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

func forbidden(msg string) error { return &ForbiddenError{Message: msg} }

var statusMessages = map[Event]string{
	EventPay:        "Payment proof can only be uploaded for transactions awaiting payment",
	EventAccept:     "Only transactions awaiting confirmation can be accepted",
	EventReject:     "Only pending transactions can be rejected",
	EventCancel:     "Only pending transactions can be cancelled",
	EventExpire:     "Only transactions awaiting payment can expire",
	EventAutoCancel: "Only transactions awaiting confirmation can be auto-cancelled",
}

// StatusError is returned when an event does not apply to the current status
type StatusError struct {
	From  Status
	Event Event
}

func (e *StatusError) Error() string {
	if msg, ok := statusMessages[e.Event]; ok {
		return msg
	}
	return fmt.Sprintf("cannot apply %s to %s transaction", e.Event, e.From)
}

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }
