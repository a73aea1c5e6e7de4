package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nexory/readygate/internal/domain"
)

// PaymentService tracks the in-flight payment attempt independently of the
// readiness snapshot. Transitions are forward-only and validated against
// the domain transition table; every transition is persisted to the attempt
// repository as an audit trail.
type PaymentService struct {
	billing   domain.BillingProvider
	validator domain.PaymentTransitionValidator
	attempts  domain.AttemptRepository
	clock     Clock
	logger    *slog.Logger

	successURL string
	failureURL string

	// onCompleted is invoked after an attempt reaches completed, so the
	// composite status reflects the new subscription immediately instead
	// of waiting out the cache TTL.
	onCompleted func(ctx context.Context)

	mu      sync.Mutex
	current domain.PaymentAttempt
}

// NewPaymentService creates a payment service. successURL and failureURL are
// where the external payment page sends the user afterwards.
func NewPaymentService(billing domain.BillingProvider, validator domain.PaymentTransitionValidator, attempts domain.AttemptRepository, clock Clock, logger *slog.Logger, successURL, failureURL string) *PaymentService {
	return &PaymentService{
		billing:    billing,
		validator:  validator,
		attempts:   attempts,
		clock:      clock,
		logger:     logger,
		successURL: successURL,
		failureURL: failureURL,
		current:    domain.PaymentAttempt{Status: domain.PaymentIdle},
	}
}

// OnCompleted registers the hook invoked when an attempt completes.
func (s *PaymentService) OnCompleted(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCompleted = fn
}

// Current returns the active (or last terminal) attempt.
func (s *PaymentService) Current() domain.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// InitiatePayment starts a fresh attempt for the plan, superseding any
// previous terminal attempt, and returns the external payment URL. The
// caller performs the actual navigation to the payment page.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID, plan string) (string, error) {
	s.mu.Lock()
	if _, err := s.validator.Apply(ctx, s.current.Status, domain.EventInitiate); err != nil {
		s.mu.Unlock()
		return "", err
	}
	attempt := domain.NewPaymentAttempt(userID, plan, s.clock.Now())
	s.current = attempt
	s.mu.Unlock()

	intent, err := s.billing.CreatePaymentIntent(ctx, plan, s.successURL, s.failureURL)
	if err != nil {
		perr := &domain.PaymentError{Op: "initiate", Err: err}
		s.transition(ctx, domain.EventFail, func(a *domain.PaymentAttempt) {
			// No provider id exists yet; mint a local one so the failure
			// still lands in the audit trail.
			a.AttemptID = "local-" + uuid.NewString()
			a.Error = perr.Error()
		})
		s.persistCurrent(ctx)
		return "", perr
	}

	s.transition(ctx, domain.EventIntentCreated, func(a *domain.PaymentAttempt) {
		a.AttemptID = intent.AttemptID
		a.PaymentURL = intent.PaymentURL
	})
	s.persistCurrent(ctx)

	return intent.PaymentURL, nil
}

// persistCurrent writes the current attempt to the repository. Persistence
// failures are logged, never surfaced: the audit trail must not block the
// payment flow.
func (s *PaymentService) persistCurrent(ctx context.Context) {
	s.mu.Lock()
	attempt := s.current
	s.mu.Unlock()
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Warn("persisting payment attempt failed", "attempt_id", attempt.AttemptID, "error", err)
	}
}

// CheckPaymentStatus polls the billing backend for the attempt and applies
// the matching transition. On completed, the registered hook forces a
// readiness re-check.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, attemptID string) (domain.PaymentAttempt, error) {
	s.mu.Lock()
	if s.current.AttemptID == "" || s.current.AttemptID != attemptID {
		s.mu.Unlock()
		return domain.PaymentAttempt{}, domain.ErrNoAttempt
	}
	s.mu.Unlock()

	status, err := s.billing.GetPaymentStatus(ctx, attemptID)
	if err != nil {
		return domain.PaymentAttempt{}, &domain.PaymentError{Op: "status", Err: err}
	}

	// Terminal statuses are absorbing: a re-poll of a settled attempt (page
	// reload, duplicate poll) is answered as-is, with no transition and no
	// repeated completion hook.
	s.mu.Lock()
	if s.current.Status == status && status.Terminal() {
		attempt := s.current
		s.mu.Unlock()
		return attempt, nil
	}
	s.mu.Unlock()

	var completed bool
	switch status {
	case domain.PaymentCompleted:
		if err := s.transition(ctx, domain.EventConfirm, nil); err != nil {
			return domain.PaymentAttempt{}, err
		}
		completed = true
	case domain.PaymentFailed:
		if err := s.transition(ctx, domain.EventFail, func(a *domain.PaymentAttempt) {
			a.Error = "payment declined by provider"
		}); err != nil {
			return domain.PaymentAttempt{}, err
		}
	case domain.PaymentPending:
		// Still waiting on the provider; no transition.
	default:
		return domain.PaymentAttempt{}, &domain.PaymentError{
			Op:  "status",
			Err: fmt.Errorf("unknown provider status %q", status),
		}
	}

	s.mu.Lock()
	attempt := s.current
	hook := s.onCompleted
	s.mu.Unlock()

	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.logger.Warn("updating payment attempt failed", "attempt_id", attemptID, "error", err)
	}

	if completed && hook != nil {
		hook(ctx)
	}

	return attempt, nil
}

// transition validates and applies an event to the current attempt.
func (s *PaymentService) transition(ctx context.Context, event domain.PaymentEvent, mutate func(*domain.PaymentAttempt)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.validator.Apply(ctx, s.current.Status, event)
	if err != nil {
		return err
	}

	s.current.Status = next
	s.current.UpdatedAt = s.clock.Now()
	if mutate != nil {
		mutate(&s.current)
	}
	return nil
}
