package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nexory/readygate/internal/domain"
)

// CheckerOptions tunes the checker's cache, coalescing, and retry behavior.
type CheckerOptions struct {
	CacheTTL       time.Duration
	DebounceWindow time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// ReadinessChecker produces readiness snapshots for a user, with caching and
// request coalescing. Identity changes, route changes, and manual refreshes
// can each request a check within milliseconds of each other; the debounce
// window collapses them into a single verification round trip.
type ReadinessChecker struct {
	backend domain.ReadinessBackend
	tasks   domain.TaskQueue
	clock   Clock
	logger  *slog.Logger
	opts    CheckerOptions

	mu        sync.Mutex
	cache     map[string]domain.CacheEntry
	last      *domain.ReadinessSnapshot
	pending   *pendingCheck
	inFlight  int
	exhausted bool
	listeners map[int]func(domain.ReadinessSnapshot)
	nextID    int
}

// pendingCheck is a debounced execution that has not fired yet. A newer
// Check call supersedes it: the timer is stopped and rescheduled with the
// parameters of the last call.
type pendingCheck struct {
	timer  Timer
	ctx    context.Context
	userID string
	force  bool
}

// NewReadinessChecker creates a checker. A zero RetryAttempts is treated
// as a single attempt.
func NewReadinessChecker(backend domain.ReadinessBackend, tasks domain.TaskQueue, clock Clock, logger *slog.Logger, opts CheckerOptions) *ReadinessChecker {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &ReadinessChecker{
		backend:   backend,
		tasks:     tasks,
		clock:     clock,
		logger:    logger,
		opts:      opts,
		cache:     make(map[string]domain.CacheEntry),
		listeners: make(map[int]func(domain.ReadinessSnapshot)),
	}
}

// Subscribe registers a listener for published snapshots and returns its
// unsubscribe function.
func (c *ReadinessChecker) Subscribe(fn func(domain.ReadinessSnapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Check requests a readiness snapshot for the user. When an unexpired cache
// entry exists and force is false, it is returned synchronously with no
// network call. Otherwise the check is scheduled behind the debounce window
// and Check returns immediately; the result arrives via Subscribe.
func (c *ReadinessChecker) Check(ctx context.Context, userID string, force bool) (domain.ReadinessSnapshot, bool) {
	c.mu.Lock()

	if !force {
		if entry, ok := c.cache[userID]; ok && entry.Fresh(c.clock.Now()) {
			c.mu.Unlock()
			return entry.Snapshot, true
		}
	}

	// Supersede any pending execution; the last call's parameters win.
	if c.pending != nil {
		c.pending.timer.Stop()
	}
	// The execution outlives the caller. HTTP-triggered checks arrive with a
	// request-scoped context that is canceled once the response is written,
	// long before the debounce window elapses, so the deferred verify must
	// not inherit the caller's cancellation.
	p := &pendingCheck{ctx: context.WithoutCancel(ctx), userID: userID, force: force}
	p.timer = c.clock.AfterFunc(c.opts.DebounceWindow, func() { c.fire(p) })
	c.pending = p

	c.mu.Unlock()
	return domain.ReadinessSnapshot{}, false
}

// IsChecking reports whether a check is pending or in flight.
func (c *ReadinessChecker) IsChecking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil || c.inFlight > 0
}

// Exhausted reports whether the last execution failed its whole retry
// budget. It stays set until a later execution succeeds or Reset is called.
func (c *ReadinessChecker) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Last returns the most recently published snapshot, if any.
func (c *ReadinessChecker) Last() (domain.ReadinessSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return domain.ReadinessSnapshot{}, false
	}
	return *c.last, true
}

// Reset discards the cache, any pending execution, and the error state.
// Called on identity change and facade teardown so nothing leaks across
// sessions.
func (c *ReadinessChecker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.pending.timer.Stop()
		c.pending = nil
	}
	c.cache = make(map[string]domain.CacheEntry)
	c.last = nil
	c.exhausted = false
}

// fire runs when the debounce window elapses. It claims the pending slot;
// if the slot no longer holds p, a later call superseded this one.
func (c *ReadinessChecker) fire(p *pendingCheck) {
	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.inFlight++
	c.mu.Unlock()

	c.execute(p.ctx, p.userID)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
}

// execute performs one coalesced check: the ensure-profile job is enqueued
// fire-and-forget, then the load-bearing verify call runs with a bounded
// retry budget.
func (c *ReadinessChecker) execute(ctx context.Context, userID string) {
	if err := c.tasks.EnqueueEnsureProfile(ctx, userID); err != nil {
		c.logger.Warn("ensure-profile enqueue failed", "user_id", userID, "error", err)
	}

	var (
		result  domain.VerifyResult
		lastErr error
	)
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		result, lastErr = c.backend.VerifyProfile(ctx, userID)
		if lastErr == nil {
			break
		}
		c.logger.Warn("verify failed",
			"user_id", userID,
			"attempt", attempt,
			"max_attempts", c.opts.RetryAttempts,
			"error", lastErr,
		)
		if attempt < c.opts.RetryAttempts {
			c.sleep(ctx, c.opts.RetryDelay)
		}
	}

	now := c.clock.Now()

	if lastErr != nil {
		verr := &domain.VerificationError{Attempts: c.opts.RetryAttempts, Last: lastErr}
		c.mu.Lock()
		var prev domain.ReadinessSnapshot
		if c.last != nil {
			prev = *c.last
		}
		snap := domain.ErrorSnapshot(prev, verr.Error(), now)
		// Invalidate so the next call is not short-circuited by a
		// stale entry.
		delete(c.cache, userID)
		c.last = &snap
		c.exhausted = true
		fns := c.listenerSlice()
		c.mu.Unlock()

		for _, fn := range fns {
			fn(snap)
		}
		return
	}

	snap := domain.NewSnapshot(result, now)

	c.mu.Lock()
	c.cache[userID] = domain.CacheEntry{
		Snapshot:  snap,
		ExpiresAt: now.Add(c.opts.CacheTTL),
	}
	c.last = &snap
	c.exhausted = false
	fns := c.listenerSlice()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}

	if snap.IsReady && snap.WorkspaceID != "" {
		if err := c.tasks.EnqueuePrefetchWorkspace(ctx, userID, snap.WorkspaceID); err != nil {
			c.logger.Debug("workspace prefetch enqueue failed", "user_id", userID, "error", err)
		}
	}
}

func (c *ReadinessChecker) listenerSlice() []func(domain.ReadinessSnapshot) {
	fns := make([]func(domain.ReadinessSnapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// sleep blocks for d using the injected clock so tests with a zero delay
// never wait on real timers.
func (c *ReadinessChecker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	done := make(chan struct{})
	timer := c.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
		timer.Stop()
	}
}
