package domain

// RedirectTag classifies a navigation decision. Each tag fires at most once
// per guard epoch (the period between two guard-clearing events).
type RedirectTag string

const (
	TagNoProfile    RedirectTag = "no-profile"
	TagNoWorkspace  RedirectTag = "no-workspace"
	TagNeedsPayment RedirectTag = "needs-payment"
	TagReady        RedirectTag = "ready"
)

// DecisionAction is what the UI gate should do with the current route.
type DecisionAction string

const (
	// ActionStay means the current route is acceptable; render it.
	ActionStay DecisionAction = "stay"
	// ActionNavigate means the gate must redirect to Decision.Target.
	ActionNavigate DecisionAction = "navigate"
	// ActionError means verification has exhausted its retry budget and
	// the gate should render the blocking error state with a manual
	// retry affordance instead of navigating.
	ActionError DecisionAction = "error"
)

// Decision is the outcome of one redirect evaluation.
type Decision struct {
	Action DecisionAction
	Target string
	Tag    RedirectTag
}

// Stay is the no-op decision.
var Stay = Decision{Action: ActionStay}
