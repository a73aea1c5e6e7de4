package backendhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexory/readygate/internal/domain"
)

// Compile-time check: BillingClient implements domain.BillingProvider.
var _ domain.BillingProvider = (*BillingClient)(nil)

// BillingClient talks to the external billing backend.
type BillingClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewBillingClient creates a client for the given base URL. A nil
// httpClient falls back to http.DefaultClient.
func NewBillingClient(baseURL, apiKey string, httpClient *http.Client) *BillingClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BillingClient{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

type createIntentRequest struct {
	Plan       string `json:"plan"`
	SuccessURL string `json:"success_url"`
	FailureURL string `json:"failure_url"`
}

type createIntentResponse struct {
	PaymentURL string `json:"payment_url"`
	AttemptID  string `json:"attempt_id"`
	Error      string `json:"error"`
}

// CreatePaymentIntent asks the provider to create a checkout for the plan
// and returns the external payment page URL with the attempt id.
func (c *BillingClient) CreatePaymentIntent(ctx context.Context, plan, successURL, failureURL string) (domain.PaymentIntent, error) {
	body, err := json.Marshal(createIntentRequest{
		Plan:       plan,
		SuccessURL: successURL,
		FailureURL: failureURL,
	})
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("create intent: encoding request: %w", err)
	}

	resp, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/v1/intents", c.apiKey, string(body))
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.PaymentIntent{}, fmt.Errorf("create intent: unexpected status %d", resp.StatusCode)
	}

	var payload createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("create intent: decoding response: %w", err)
	}
	if payload.Error != "" {
		return domain.PaymentIntent{}, fmt.Errorf("create intent: provider error: %s", payload.Error)
	}

	return domain.PaymentIntent{
		AttemptID:  payload.AttemptID,
		PaymentURL: payload.PaymentURL,
	}, nil
}

type paymentStatusResponse struct {
	Status string `json:"status"`
}

// GetPaymentStatus polls the provider for the attempt's state.
func (c *BillingClient) GetPaymentStatus(ctx context.Context, attemptID string) (domain.PaymentStatus, error) {
	resp, err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/api/v1/intents/"+url.PathEscape(attemptID), c.apiKey, "")
	if err != nil {
		return "", fmt.Errorf("payment status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.ErrAttemptNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment status: unexpected status %d", resp.StatusCode)
	}

	var payload paymentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("payment status: decoding response: %w", err)
	}

	switch payload.Status {
	case "pending", "completed", "failed":
		return domain.PaymentStatus(payload.Status), nil
	default:
		return "", fmt.Errorf("payment status: unknown status %q", payload.Status)
	}
}

// doJSON issues a request with the shared auth and content headers.
func doJSON(ctx context.Context, client *http.Client, method, fullURL, apiKey, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return client.Do(req)
}
