package transaction

// Event is something that happens to a pending purchase
type Event string

const (
	EventPay        Event = "PAY"
	EventAccept     Event = "ACCEPT"
	EventReject     Event = "REJECT"
	EventCancel     Event = "CANCEL"
	EventExpire     Event = "EXPIRE"
	EventAutoCancel Event = "AUTO_CANCEL"
)

// Compensation is the ledger work a transition carries
type Compensation int

const (
	CompensationNone Compensation = iota
	// CompensationRelease returns seats, refunds points and restores the coupon.
	CompensationRelease
)

// Deadline says what happens to ExpiresAt on a transition
type Deadline int

const (
	DeadlineClear Deadline = iota
	DeadlineConfirmation
)

// Transition is one edge of the lifecycle graph
type Transition struct {
	To           Status
	Compensation Compensation
	Deadline     Deadline
}

// Transitions is the complete lifecycle. Statuses without an entry are terminal.
var Transitions = map[Status]map[Event]Transition{
	StatusWaitingPayment: {
		EventPay:    {To: StatusWaitingConfirmation, Compensation: CompensationNone, Deadline: DeadlineConfirmation},
		EventReject: {To: StatusRejected, Compensation: CompensationRelease, Deadline: DeadlineClear},
		EventCancel: {To: StatusCanceled, Compensation: CompensationRelease, Deadline: DeadlineClear},
		EventExpire: {To: StatusExpired, Compensation: CompensationRelease, Deadline: DeadlineClear},
	},
	StatusWaitingConfirmation: {
		EventAccept:     {To: StatusDone, Compensation: CompensationNone, Deadline: DeadlineClear},
		EventReject:     {To: StatusRejected, Compensation: CompensationRelease, Deadline: DeadlineClear},
		EventCancel:     {To: StatusCanceled, Compensation: CompensationRelease, Deadline: DeadlineClear},
		EventAutoCancel: {To: StatusCanceled, Compensation: CompensationRelease, Deadline: DeadlineClear},
	},
}

// Resolve returns the transition for ev out of from, or a *StatusError
func Resolve(from Status, ev Event) (Transition, error) {
	if tr, ok := Transitions[from][ev]; ok {
		return tr, nil
	}
	return Transition{}, &StatusError{From: from, Event: ev}
}
