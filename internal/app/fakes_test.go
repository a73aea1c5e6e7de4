package app_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nexory/readygate/internal/app"
	"github.com/nexory/readygate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fake clock ---

// fakeClock drives the checker's debounce window and TTL deterministically.
// Scheduled functions run synchronously, in deadline order, when Advance
// moves time past them. Nothing ever fires from AfterFunc itself.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every due, unstopped timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	due := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}

// --- Identity provider ---

type fakeIdentityProvider struct {
	mu           sync.Mutex
	resumeID     *domain.Identity
	resumeErr    error
	signInErr    error
	signOutErr   error
	providerURL  string
	resumeCalls  int
	signOutCalls int
}

func (f *fakeIdentityProvider) Resume(_ context.Context) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	if f.resumeErr != nil {
		return domain.Identity{}, f.resumeErr
	}
	if f.resumeID == nil {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return *f.resumeID, nil
}

func (f *fakeIdentityProvider) SignIn(_ context.Context, email, _ string) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return domain.Identity{}, f.signInErr
	}
	return domain.Identity{UserID: "u-1", Email: email, Token: "tok-1"}, nil
}

func (f *fakeIdentityProvider) SignInWithProvider(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providerURL, nil
}

func (f *fakeIdentityProvider) SignOut(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

// --- Readiness backend ---

// readyResult is a VerifyResult satisfying every readiness condition.
var readyResult = domain.VerifyResult{
	ProfileExists:      true,
	WorkspaceExists:    true,
	WorkspaceID:        "ws-1",
	SubscriptionStatus: "active",
	SubscriptionPlan:   "pro",
}

type fakeBackend struct {
	mu          sync.Mutex
	verifyFn    func(userID string) (domain.VerifyResult, error)
	verifyCalls int
}

func (f *fakeBackend) EnsureProfile(_ context.Context, _ string) error { return nil }

func (f *fakeBackend) VerifyProfile(_ context.Context, userID string) (domain.VerifyResult, error) {
	f.mu.Lock()
	f.verifyCalls++
	fn := f.verifyFn
	f.mu.Unlock()

	if fn == nil {
		return readyResult, nil
	}
	return fn(userID)
}

func (f *fakeBackend) FetchWorkspace(_ context.Context, _ string) error { return nil }

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

// --- Task queue ---

type fakeQueue struct {
	mu         sync.Mutex
	ensures    []string
	prefetches []string
	ensureErr  error
}

func (f *fakeQueue) EnqueueEnsureProfile(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures = append(f.ensures, userID)
	return f.ensureErr
}

func (f *fakeQueue) EnqueuePrefetchWorkspace(_ context.Context, _, workspaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetches = append(f.prefetches, workspaceID)
	return nil
}

func (f *fakeQueue) ensureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ensures)
}

func (f *fakeQueue) prefetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prefetches)
}

// --- Payment transition validator ---

// tableValidator applies the domain transition table directly, without the
// FSM adapter.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.PaymentStatus, event domain.PaymentEvent) (domain.PaymentStatus, error) {
	for _, tr := range domain.PaymentTransitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Billing provider ---

type fakeBilling struct {
	mu          sync.Mutex
	intentErr   error
	status      domain.PaymentStatus
	statusErr   error
	intentCalls int
}

func (f *fakeBilling) CreatePaymentIntent(_ context.Context, _, _, _ string) (domain.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentCalls++
	if f.intentErr != nil {
		return domain.PaymentIntent{}, f.intentErr
	}
	return domain.PaymentIntent{AttemptID: "pa-1", PaymentURL: "https://pay.example.com/pa-1"}, nil
}

func (f *fakeBilling) GetPaymentStatus(_ context.Context, _ string) (domain.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.status == "" {
		return domain.PaymentPending, nil
	}
	return f.status, nil
}

// --- Attempt repository ---

type fakeAttempts struct {
	mu       sync.Mutex
	attempts map[string]domain.PaymentAttempt
	updates  int
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{attempts: make(map[string]domain.PaymentAttempt)}
}

func (f *fakeAttempts) Create(_ context.Context, a domain.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[a.AttemptID] = a
	return nil
}

func (f *fakeAttempts) Update(_ context.Context, a domain.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[a.AttemptID] = a
	f.updates++
	return nil
}

func (f *fakeAttempts) GetByID(_ context.Context, id string) (domain.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return domain.PaymentAttempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID string) ([]domain.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PaymentAttempt, 0)
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
