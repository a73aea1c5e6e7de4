package domain

import "time"

// PaymentStatus represents the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentIdle       PaymentStatus = "idle"
	PaymentInitiating PaymentStatus = "initiating"
	PaymentPending    PaymentStatus = "pending"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// Terminal reports whether the status is an end state of an attempt. A
// terminal attempt is left only by a fresh initiate.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// PaymentEvent represents an action that triggers a payment state transition.
type PaymentEvent string

const (
	// EventInitiate starts a fresh attempt. It is valid from every state
	// except an already-initiating one: a new attempt supersedes any
	// previous terminal or pending attempt.
	EventInitiate      PaymentEvent = "initiate"
	EventIntentCreated PaymentEvent = "intent_created"
	EventConfirm       PaymentEvent = "confirm"
	EventFail          PaymentEvent = "fail"
)

// PaymentTransition defines a valid state change: an event moves an attempt
// from Src to Dst.
type PaymentTransition struct {
	Event PaymentEvent
	Src   PaymentStatus
	Dst   PaymentStatus
}

// PaymentTransitions defines all valid state changes in the payment attempt
// lifecycle. Transitions are forward-only; terminal states are left only by
// a fresh initiate. This is domain knowledge consumed by the FSM adapter.
var PaymentTransitions = []PaymentTransition{
	{Event: EventInitiate, Src: PaymentIdle, Dst: PaymentInitiating},
	{Event: EventInitiate, Src: PaymentPending, Dst: PaymentInitiating},
	{Event: EventInitiate, Src: PaymentCompleted, Dst: PaymentInitiating},
	{Event: EventInitiate, Src: PaymentFailed, Dst: PaymentInitiating},
	{Event: EventIntentCreated, Src: PaymentInitiating, Dst: PaymentPending},
	{Event: EventConfirm, Src: PaymentPending, Dst: PaymentCompleted},
	{Event: EventFail, Src: PaymentInitiating, Dst: PaymentFailed},
	{Event: EventFail, Src: PaymentPending, Dst: PaymentFailed},
}

// PaymentAttempt is the current in-flight (or last terminal) payment attempt.
// At most one attempt is active at a time; a new initiate discards the
// previous one.
type PaymentAttempt struct {
	AttemptID  string
	UserID     string
	Plan       string
	Status     PaymentStatus
	PaymentURL string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPaymentAttempt creates an attempt in the initiating state for the given
// user and plan. The attempt id is assigned once the billing backend has
// created the intent.
func NewPaymentAttempt(userID, plan string, now time.Time) PaymentAttempt {
	return PaymentAttempt{
		UserID:    userID,
		Plan:      plan,
		Status:    PaymentInitiating,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
