package app

import (
	"sync"

	"github.com/nexory/readygate/internal/config"
	"github.com/nexory/readygate/internal/domain"
)

// DecideState is the non-snapshot input to a redirect decision.
type DecideState struct {
	Authenticated bool
	// Checking suppresses decisions while a verification is pending or
	// in flight, so gates never redirect on a half-formed status.
	Checking bool
	// Exhausted means verification has failed its whole retry budget;
	// the gate renders the error state instead of navigating.
	Exhausted bool
}

// RedirectEngine maps a readiness snapshot and the current route to at most
// one navigation action. The guard set records which redirect classes have
// already been actioned in the current epoch, preventing redirect loops when
// a downstream page itself triggers a re-check.
type RedirectEngine struct {
	routes config.Routes

	mu    sync.Mutex
	guard map[domain.RedirectTag]bool
}

// NewRedirectEngine creates an engine steering between the given routes.
func NewRedirectEngine(routes config.Routes) *RedirectEngine {
	return &RedirectEngine{
		routes: routes,
		guard:  make(map[domain.RedirectTag]bool),
	}
}

// Decide evaluates the redirect rules in order; the first applicable rule
// wins. Each navigation is tagged and checked against the guard set before
// firing, so a given tag fires at most once per epoch.
func (e *RedirectEngine) Decide(snap domain.ReadinessSnapshot, route string, st DecideState) domain.Decision {
	if e.routes.IsPublicRoute(route) || !st.Authenticated || st.Checking {
		return domain.Stay
	}

	if st.Exhausted {
		return domain.Decision{Action: domain.ActionError}
	}

	switch {
	case !snap.ProfileExists:
		return e.navigate(domain.TagNoProfile, e.routes.OnboardingEntry, route)
	case !snap.WorkspaceExists:
		// Workspace creation is bundled with profile-first onboarding.
		return e.navigate(domain.TagNoWorkspace, e.routes.OnboardingEntry, route)
	case snap.NeedsPayment || snap.SubscriptionStatus != domain.SubscriptionActive:
		return e.navigate(domain.TagNeedsPayment, e.routes.PlanSelection, route)
	case snap.IsReady && route == e.routes.PlanSelection:
		return e.navigate(domain.TagReady, e.routes.MainApp, route)
	case snap.IsReady:
		// Steady state: clear the guard so future transient re-checks
		// may re-fire if the status later regresses.
		e.Clear()
		return domain.Stay
	}

	return domain.Stay
}

// navigate fires the decision unless the tag already fired this epoch or
// the user is already on the target route.
func (e *RedirectEngine) navigate(tag domain.RedirectTag, target, route string) domain.Decision {
	if route == target {
		return domain.Stay
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard[tag] {
		return domain.Stay
	}
	e.guard[tag] = true

	return domain.Decision{
		Action: domain.ActionNavigate,
		Target: target,
		Tag:    tag,
	}
}

// Clear empties the guard set, starting a new epoch. Called on identity
// change, sign-out, and when the account reaches steady state.
func (e *RedirectEngine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guard = make(map[domain.RedirectTag]bool)
}

// GuardTags returns the tags actioned in the current epoch.
func (e *RedirectEngine) GuardTags() []domain.RedirectTag {
	e.mu.Lock()
	defer e.mu.Unlock()

	tags := make([]domain.RedirectTag, 0, len(e.guard))
	for tag := range e.guard {
		tags = append(tags, tag)
	}
	return tags
}
