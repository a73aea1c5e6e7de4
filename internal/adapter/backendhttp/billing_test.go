package backendhttp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexory/readygate/internal/adapter/backendhttp"
	"github.com/nexory/readygate/internal/domain"
)

func TestBillingClient_CreatePaymentIntent(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/intents" {
			t.Errorf("path = %q, want intents path", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"payment_url": "https://pay.example.com/pa-1", "attempt_id": "pa-1"}`))
	}))
	t.Cleanup(srv.Close)

	client := backendhttp.NewBillingClient(srv.URL, "key-1", nil)

	intent, err := client.CreatePaymentIntent(context.Background(), "pro", "/ok", "/fail")
	if err != nil {
		t.Fatalf("CreatePaymentIntent failed: %v", err)
	}
	if intent.AttemptID != "pa-1" {
		t.Errorf("AttemptID = %q, want %q", intent.AttemptID, "pa-1")
	}
	if intent.PaymentURL != "https://pay.example.com/pa-1" {
		t.Errorf("PaymentURL = %q, want payment page", intent.PaymentURL)
	}
	if gotBody["plan"] != "pro" || gotBody["success_url"] != "/ok" || gotBody["failure_url"] != "/fail" {
		t.Errorf("request body = %v, want plan and redirect URLs", gotBody)
	}
}

func TestBillingClient_CreatePaymentIntent_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "plan not available"}`))
	}))
	t.Cleanup(srv.Close)

	client := backendhttp.NewBillingClient(srv.URL, "", nil)

	if _, err := client.CreatePaymentIntent(context.Background(), "pro", "/ok", "/fail"); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestBillingClient_GetPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/intents/pa-1" {
			t.Errorf("path = %q, want intent path", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "completed"}`))
	}))
	t.Cleanup(srv.Close)

	client := backendhttp.NewBillingClient(srv.URL, "", nil)

	status, err := client.GetPaymentStatus(context.Background(), "pa-1")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if status != domain.PaymentCompleted {
		t.Errorf("status = %q, want %q", status, domain.PaymentCompleted)
	}
}

func TestBillingClient_GetPaymentStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := backendhttp.NewBillingClient(srv.URL, "", nil)

	_, err := client.GetPaymentStatus(context.Background(), "pa-x")
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Errorf("error = %v, want ErrAttemptNotFound", err)
	}
}

func TestBillingClient_GetPaymentStatus_UnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "limbo"}`))
	}))
	t.Cleanup(srv.Close)

	client := backendhttp.NewBillingClient(srv.URL, "", nil)

	if _, err := client.GetPaymentStatus(context.Background(), "pa-1"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
