package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nexory/readygate/internal/domain"
)

// SessionStore owns the authenticated identity and its process-wide
// lifecycle. It is the only component that talks to the identity backend.
type SessionStore struct {
	provider domain.IdentityProvider
	logger   *slog.Logger

	mu          sync.Mutex
	identity    *domain.Identity
	initialized bool
	listeners   map[int]func(domain.AuthEvent, *domain.Identity)
	nextID      int
}

// NewSessionStore creates a session store backed by the given identity
// provider.
func NewSessionStore(provider domain.IdentityProvider, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		provider:  provider,
		logger:    logger,
		listeners: make(map[int]func(domain.AuthEvent, *domain.Identity)),
	}
}

// Initialize attempts to resume a persisted session. It is idempotent and
// never returns an error: backend failures are logged and collapse to an
// unauthenticated result.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	identity, err := s.provider.Resume(ctx)
	if err != nil {
		s.logger.Info("session resume failed, starting unauthenticated", "error", err)
		s.publish(domain.AuthSignedOut, nil)
		return
	}

	s.publish(domain.AuthSignedIn, &identity)
}

// Subscribe registers a listener invoked on every identity transition. The
// returned function unsubscribes; callers must invoke it on teardown.
func (s *SessionStore) Subscribe(fn func(domain.AuthEvent, *domain.Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Current returns the identity, or nil when unauthenticated.
func (s *SessionStore) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SignIn verifies credentials against the identity backend and publishes
// the resulting identity.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	s.publish(domain.AuthSignedIn, &identity)
	return nil
}

// SignInWithProvider starts a federated login flow and returns the redirect
// URL. Identity is published later, when the provider callback resumes the
// session.
func (s *SessionStore) SignInWithProvider(ctx context.Context, provider, returnTo string) (string, error) {
	return s.provider.SignInWithProvider(ctx, provider, returnTo)
}

// Refresh re-validates the persisted session against the backend and
// republishes the identity with the current token. An invalid session
// collapses to signed-out. No-op while unauthenticated.
func (s *SessionStore) Refresh(ctx context.Context) {
	s.mu.Lock()
	signedIn := s.identity != nil
	s.mu.Unlock()
	if !signedIn {
		return
	}

	identity, err := s.provider.Resume(ctx)
	if err != nil {
		s.logger.Warn("session refresh failed, signing out", "error", err)
		s.publish(domain.AuthSignedOut, nil)
		return
	}

	s.publish(domain.AuthTokenRefreshed, &identity)
}

// SignOut invalidates the backend session and publishes unauthenticated.
// Local state clearing wins unconditionally: a failed remote call must
// never leave the user trapped in a signed-in UI.
func (s *SessionStore) SignOut(ctx context.Context) {
	s.mu.Lock()
	var token string
	if s.identity != nil {
		token = s.identity.Token
	}
	s.mu.Unlock()

	if token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			s.logger.Warn("remote sign-out failed, clearing local session anyway", "error", err)
		}
	}

	s.publish(domain.AuthSignedOut, nil)
}

// publish replaces the identity wholesale and fans out to listeners.
// Listeners are called outside the lock so they can re-enter the store.
func (s *SessionStore) publish(event domain.AuthEvent, identity *domain.Identity) {
	s.mu.Lock()
	s.identity = identity
	fns := make([]func(domain.AuthEvent, *domain.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event, identity)
	}
}
