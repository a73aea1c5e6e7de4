package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nexory/readygate/internal/domain"
)

// Status is the single observable object UI gates depend on. Gates render
// loading, blocked, or ready purely as a function of this value and never
// call backend readiness endpoints themselves.
type Status struct {
	Identity            *domain.Identity
	Readiness           *domain.ReadinessSnapshot
	IsCheckingReadiness bool
	PaymentAttempt      domain.PaymentAttempt
	IsAuthenticated     bool
}

// Orchestrator composes the session store, readiness checker, redirect
// engine, and payment service behind one facade. It guarantees readiness is
// re-triggered whenever identity becomes present and whenever the active
// route changes while authenticated.
type Orchestrator struct {
	session  *SessionStore
	checker  *ReadinessChecker
	engine   *RedirectEngine
	payments *PaymentService
	logger   *slog.Logger

	unsubSession func()
	unsubChecker func()

	mu        sync.Mutex
	route     string
	listeners map[int]func(Status)
	nextID    int
	closed    bool
}

// NewOrchestrator wires the components together. Call Close on teardown to
// release the internal subscriptions.
func NewOrchestrator(session *SessionStore, checker *ReadinessChecker, engine *RedirectEngine, payments *PaymentService, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		session:   session,
		checker:   checker,
		engine:    engine,
		payments:  payments,
		logger:    logger,
		listeners: make(map[int]func(Status)),
	}

	o.unsubSession = session.Subscribe(o.onIdentityChange)
	o.unsubChecker = checker.Subscribe(o.onSnapshot)
	payments.OnCompleted(o.onPaymentCompleted)

	return o
}

// Initialize bootstraps the session (resume or unauthenticated).
func (o *Orchestrator) Initialize(ctx context.Context) {
	o.session.Initialize(ctx)
}

// Close tears the facade down: internal subscriptions are released and the
// cache and guard set are emptied so nothing leaks across sessions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.unsubSession()
	o.unsubChecker()
	o.checker.Reset()
	o.engine.Clear()
}

// Status returns the composed observable status.
func (o *Orchestrator) Status() Status {
	identity := o.session.Current()
	st := Status{
		Identity:            identity,
		IsCheckingReadiness: o.checker.IsChecking(),
		PaymentAttempt:      o.payments.Current(),
		IsAuthenticated:     identity != nil,
	}
	if snap, ok := o.checker.Last(); ok {
		st.Readiness = &snap
	}
	return st
}

// Subscribe registers a listener notified whenever the composed status may
// have changed. Returns the unsubscribe function.
func (o *Orchestrator) Subscribe(fn func(Status)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.listeners[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Login verifies credentials; on success the identity transition triggers a
// readiness check.
func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	return o.session.SignIn(ctx, email, password)
}

// LoginWithProvider starts a federated login flow and returns the redirect
// URL for the caller to navigate to.
func (o *Orchestrator) LoginWithProvider(ctx context.Context, provider, returnTo string) (string, error) {
	return o.session.SignInWithProvider(ctx, provider, returnTo)
}

// RefreshSession re-validates the backend session, for long-lived clients
// whose token may have rolled over. An invalid session signs the user out.
func (o *Orchestrator) RefreshSession(ctx context.Context) {
	o.session.Refresh(ctx)
}

// Logout invalidates the session. Local state clears even when the remote
// call fails.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.session.SignOut(ctx)
}

// RefreshReadiness requests a readiness check for the current user. force
// bypasses and overwrites the cache. Returns false when unauthenticated.
func (o *Orchestrator) RefreshReadiness(ctx context.Context, force bool) bool {
	identity := o.session.Current()
	if identity == nil {
		return false
	}
	o.checker.Check(ctx, identity.UserID, force)
	return true
}

// SetRoute records the active route and evaluates the redirect rules for
// it. A route change while authenticated also re-triggers the checker,
// because some readiness facts are only actionable from specific routes.
func (o *Orchestrator) SetRoute(ctx context.Context, route string) domain.Decision {
	o.mu.Lock()
	o.route = route
	o.mu.Unlock()

	identity := o.session.Current()
	if identity != nil {
		o.checker.Check(ctx, identity.UserID, false)
	}

	return o.decide(route)
}

// InitiatePayment starts a payment attempt for the current user and returns
// the external payment URL.
func (o *Orchestrator) InitiatePayment(ctx context.Context, plan string) (string, error) {
	identity := o.session.Current()
	if identity == nil {
		return "", domain.ErrUnauthenticated
	}

	url, err := o.payments.InitiatePayment(ctx, identity.UserID, plan)
	o.notify()
	return url, err
}

// CheckPaymentStatus polls the billing backend for the attempt.
func (o *Orchestrator) CheckPaymentStatus(ctx context.Context, attemptID string) (domain.PaymentAttempt, error) {
	attempt, err := o.payments.CheckPaymentStatus(ctx, attemptID)
	o.notify()
	return attempt, err
}

// decide evaluates the redirect rules against the latest snapshot.
func (o *Orchestrator) decide(route string) domain.Decision {
	snap, _ := o.checker.Last()
	return o.engine.Decide(snap, route, DecideState{
		Authenticated: o.session.Current() != nil,
		Checking:      o.checker.IsChecking(),
		Exhausted:     o.checker.Exhausted(),
	})
}

// onIdentityChange starts a fresh epoch on every identity transition: the
// guard set and cache are cleared, and a signed-in identity immediately
// triggers a readiness check. A token refresh keeps the epoch: the user is
// the same, only the session handle rolled over.
func (o *Orchestrator) onIdentityChange(event domain.AuthEvent, identity *domain.Identity) {
	if event == domain.AuthTokenRefreshed {
		o.notify()
		return
	}

	o.engine.Clear()
	o.checker.Reset()

	if event == domain.AuthSignedIn && identity != nil {
		o.checker.Check(context.Background(), identity.UserID, false)
	}

	o.notify()
}

// onSnapshot re-evaluates the redirect rules for the current route whenever
// a fresh snapshot is published.
func (o *Orchestrator) onSnapshot(snap domain.ReadinessSnapshot) {
	o.mu.Lock()
	route := o.route
	o.mu.Unlock()

	if route != "" {
		decision := o.engine.Decide(snap, route, DecideState{
			Authenticated: o.session.Current() != nil,
			Checking:      false,
			Exhausted:     o.checker.Exhausted(),
		})
		if decision.Action == domain.ActionNavigate {
			o.logger.Info("navigation decided",
				"tag", decision.Tag,
				"from", route,
				"to", decision.Target,
			)
		}
	}

	o.notify()
}

// onPaymentCompleted forces a readiness re-check so the composite status
// reflects the new subscription immediately.
func (o *Orchestrator) onPaymentCompleted(ctx context.Context) {
	identity := o.session.Current()
	if identity == nil {
		return
	}
	o.checker.Check(ctx, identity.UserID, true)
}

func (o *Orchestrator) notify() {
	st := o.Status()

	o.mu.Lock()
	fns := make([]func(Status), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
