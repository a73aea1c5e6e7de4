package domain

import "context"

// IdentityProvider is the opaque identity backend: credential verification,
// session resumption and invalidation live behind it.
type IdentityProvider interface {
	// Resume recovers a persisted session, if any. Returns
	// ErrUnauthenticated when no session can be resumed.
	Resume(ctx context.Context) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	// SignInWithProvider starts a federated login flow and returns the
	// URL the caller must redirect the user to.
	SignInWithProvider(ctx context.Context, provider, returnTo string) (string, error)
	SignOut(ctx context.Context, token string) error
}

// VerifyResult is the load-bearing readiness read from the backend.
type VerifyResult struct {
	ProfileExists      bool
	WorkspaceExists    bool
	WorkspaceID        string
	SubscriptionStatus string
	SubscriptionPlan   string
	NeedsPayment       bool
}

// ReadinessBackend combines the side-effecting "ensure profile" call with
// the authoritative verification read and the workspace prefetch.
type ReadinessBackend interface {
	// EnsureProfile is idempotent and best-effort: failures only affect
	// the next verification result.
	EnsureProfile(ctx context.Context, userID string) error
	VerifyProfile(ctx context.Context, userID string) (VerifyResult, error)
	// FetchWorkspace warms the backend's workspace detail. Pure
	// optimization; callers ignore failures.
	FetchWorkspace(ctx context.Context, workspaceID string) error
}

// PaymentIntent is the billing backend's answer to an initiate call.
type PaymentIntent struct {
	AttemptID  string
	PaymentURL string
}

// BillingProvider is the external payment backend.
type BillingProvider interface {
	CreatePaymentIntent(ctx context.Context, plan, successURL, failureURL string) (PaymentIntent, error)
	GetPaymentStatus(ctx context.Context, attemptID string) (PaymentStatus, error)
}

// AttemptRepository persists the payment attempt audit trail.
type AttemptRepository interface {
	Create(ctx context.Context, attempt PaymentAttempt) error
	Update(ctx context.Context, attempt PaymentAttempt) error
	GetByID(ctx context.Context, attemptID string) (PaymentAttempt, error)
	ListByUser(ctx context.Context, userID string) ([]PaymentAttempt, error)
}

// TaskQueue enqueues fire-and-forget background work. Enqueue failures are
// logged by callers, never surfaced.
type TaskQueue interface {
	EnqueueEnsureProfile(ctx context.Context, userID string) error
	EnqueuePrefetchWorkspace(ctx context.Context, userID, workspaceID string) error
}

// PaymentTransitionValidator checks whether a payment event is legal from
// the current status and returns the destination status.
type PaymentTransitionValidator interface {
	Apply(ctx context.Context, current PaymentStatus, event PaymentEvent) (PaymentStatus, error)
}
