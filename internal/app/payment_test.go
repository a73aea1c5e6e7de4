package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nexory/readygate/internal/app"
	"github.com/nexory/readygate/internal/domain"
)

func newPaymentService(billing *fakeBilling, attempts *fakeAttempts) *app.PaymentService {
	return app.NewPaymentService(
		billing,
		tableValidator{},
		attempts,
		newFakeClock(),
		testLogger(),
		"/onboarding/payment/success",
		"/onboarding/payment/failure",
	)
}

func TestPayment_InitiateTransitionsToPending(t *testing.T) {
	billing := &fakeBilling{}
	attempts := newFakeAttempts()
	svc := newPaymentService(billing, attempts)

	url, err := svc.InitiatePayment(context.Background(), "u-1", "pro")
	if err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if url != "https://pay.example.com/pa-1" {
		t.Errorf("url = %q, want payment page URL", url)
	}

	current := svc.Current()
	if current.Status != domain.PaymentPending {
		t.Errorf("Status = %q, want %q", current.Status, domain.PaymentPending)
	}
	if current.AttemptID != "pa-1" {
		t.Errorf("AttemptID = %q, want %q", current.AttemptID, "pa-1")
	}

	// The attempt is persisted for the audit trail.
	stored, err := attempts.GetByID(context.Background(), "pa-1")
	if err != nil {
		t.Fatalf("attempt not persisted: %v", err)
	}
	if stored.Plan != "pro" {
		t.Errorf("stored plan = %q, want %q", stored.Plan, "pro")
	}
}

func TestPayment_InitiateBillingFailure(t *testing.T) {
	billing := &fakeBilling{intentErr: errors.New("provider unavailable")}
	svc := newPaymentService(billing, newFakeAttempts())

	_, err := svc.InitiatePayment(context.Background(), "u-1", "pro")

	var perr *domain.PaymentError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want PaymentError", err)
	}
	if current := svc.Current(); current.Status != domain.PaymentFailed {
		t.Errorf("Status = %q, want %q", current.Status, domain.PaymentFailed)
	}
	if current := svc.Current(); current.Error == "" {
		t.Error("failed attempt should carry the error message")
	}
}

func TestPayment_InitiateBillingFailureIsPersisted(t *testing.T) {
	billing := &fakeBilling{intentErr: errors.New("provider unavailable")}
	attempts := newFakeAttempts()
	svc := newPaymentService(billing, attempts)

	if _, err := svc.InitiatePayment(context.Background(), "u-1", "pro"); err == nil {
		t.Fatal("expected initiate to fail")
	}

	// The failure lands in the audit trail under a locally minted id.
	stored, err := attempts.ListByUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored attempts = %d, want 1", len(stored))
	}
	if stored[0].Status != domain.PaymentFailed {
		t.Errorf("stored status = %q, want %q", stored[0].Status, domain.PaymentFailed)
	}
	if stored[0].AttemptID == "" {
		t.Error("stored attempt should carry a minted id")
	}
	if stored[0].Error == "" {
		t.Error("stored attempt should carry the failure reason")
	}
}

func TestPayment_NewInitiateSupersedesFailedAttempt(t *testing.T) {
	billing := &fakeBilling{intentErr: errors.New("provider unavailable")}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err == nil {
		t.Fatal("expected first initiate to fail")
	}

	billing.mu.Lock()
	billing.intentErr = nil
	billing.mu.Unlock()

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("second initiate failed: %v", err)
	}
	if current := svc.Current(); current.Status != domain.PaymentPending {
		t.Errorf("Status = %q, want %q", current.Status, domain.PaymentPending)
	}
	if current := svc.Current(); current.Error != "" {
		t.Error("fresh attempt must not inherit the previous error")
	}
}

func TestPayment_CheckStatusCompletedTriggersForcedRecheck(t *testing.T) {
	billing := &fakeBilling{status: domain.PaymentCompleted}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	forced := 0
	svc.OnCompleted(func(context.Context) { forced++ })

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}

	attempt, err := svc.CheckPaymentStatus(ctx, "pa-1")
	if err != nil {
		t.Fatalf("CheckPaymentStatus failed: %v", err)
	}
	if attempt.Status != domain.PaymentCompleted {
		t.Errorf("Status = %q, want %q", attempt.Status, domain.PaymentCompleted)
	}
	if forced != 1 {
		t.Errorf("forced re-checks = %d, want 1", forced)
	}
}

func TestPayment_CheckStatusCompletedRepollIsIdempotent(t *testing.T) {
	billing := &fakeBilling{status: domain.PaymentCompleted}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	forced := 0
	svc.OnCompleted(func(context.Context) { forced++ })

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if _, err := svc.CheckPaymentStatus(ctx, "pa-1"); err != nil {
		t.Fatalf("first poll failed: %v", err)
	}

	// A page reload polls the settled attempt again.
	attempt, err := svc.CheckPaymentStatus(ctx, "pa-1")
	if err != nil {
		t.Fatalf("re-poll failed: %v", err)
	}
	if attempt.Status != domain.PaymentCompleted {
		t.Errorf("Status = %q, want %q", attempt.Status, domain.PaymentCompleted)
	}
	if forced != 1 {
		t.Errorf("forced re-checks = %d, want 1 (hook must not repeat)", forced)
	}
}

func TestPayment_CheckStatusFailedRepollIsIdempotent(t *testing.T) {
	billing := &fakeBilling{status: domain.PaymentFailed}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if _, err := svc.CheckPaymentStatus(ctx, "pa-1"); err != nil {
		t.Fatalf("first poll failed: %v", err)
	}

	attempt, err := svc.CheckPaymentStatus(ctx, "pa-1")
	if err != nil {
		t.Fatalf("re-poll failed: %v", err)
	}
	if attempt.Status != domain.PaymentFailed {
		t.Errorf("Status = %q, want %q", attempt.Status, domain.PaymentFailed)
	}
}

func TestPayment_CheckStatusPendingStaysPending(t *testing.T) {
	billing := &fakeBilling{status: domain.PaymentPending}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	forced := 0
	svc.OnCompleted(func(context.Context) { forced++ })

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}

	attempt, err := svc.CheckPaymentStatus(ctx, "pa-1")
	if err != nil {
		t.Fatalf("CheckPaymentStatus failed: %v", err)
	}
	if attempt.Status != domain.PaymentPending {
		t.Errorf("Status = %q, want %q", attempt.Status, domain.PaymentPending)
	}
	if forced != 0 {
		t.Errorf("forced re-checks = %d, want 0", forced)
	}
}

func TestPayment_CheckStatusFailedIsTerminal(t *testing.T) {
	billing := &fakeBilling{status: domain.PaymentFailed}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}

	attempt, err := svc.CheckPaymentStatus(ctx, "pa-1")
	if err != nil {
		t.Fatalf("CheckPaymentStatus failed: %v", err)
	}
	if attempt.Status != domain.PaymentFailed {
		t.Errorf("Status = %q, want %q", attempt.Status, domain.PaymentFailed)
	}
	if attempt.Error == "" {
		t.Error("failed attempt should carry an error message")
	}
}

func TestPayment_CheckStatusUnknownAttempt(t *testing.T) {
	svc := newPaymentService(&fakeBilling{}, newFakeAttempts())

	_, err := svc.CheckPaymentStatus(context.Background(), "pa-unknown")
	if !errors.Is(err, domain.ErrNoAttempt) {
		t.Errorf("error = %v, want ErrNoAttempt", err)
	}
}

func TestPayment_CheckStatusProviderError(t *testing.T) {
	billing := &fakeBilling{statusErr: errors.New("provider timeout")}
	svc := newPaymentService(billing, newFakeAttempts())
	ctx := context.Background()

	if _, err := svc.InitiatePayment(ctx, "u-1", "pro"); err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}

	_, err := svc.CheckPaymentStatus(ctx, "pa-1")
	var perr *domain.PaymentError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want PaymentError", err)
	}
	// The provider error must never silently resolve the attempt.
	if current := svc.Current(); current.Status != domain.PaymentPending {
		t.Errorf("Status = %q, want still %q", current.Status, domain.PaymentPending)
	}
}
