// Package backendhttp holds the JSON-over-HTTP clients for the profile
// verification and billing backends. Only the fields the orchestrator
// consumes are decoded; everything else on the wire belongs to the backend.
package backendhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nexory/readygate/internal/domain"
)

// Compile-time check: ProfileClient implements domain.ReadinessBackend.
var _ domain.ReadinessBackend = (*ProfileClient)(nil)

// ProfileClient talks to the profile/workspace verification backend.
type ProfileClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewProfileClient creates a client for the given base URL. A nil
// httpClient falls back to http.DefaultClient.
func NewProfileClient(baseURL, apiKey string, httpClient *http.Client) *ProfileClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ProfileClient{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

// EnsureProfile asks the backend to create the user's profile if it does
// not exist yet. The call is idempotent.
func (c *ProfileClient) EnsureProfile(ctx context.Context, userID string) error {
	body := fmt.Sprintf(`{"user_id":%q}`, userID)
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/profiles/ensure", body)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("ensure profile: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// verifyResponse mirrors the consumed subset of the verification payload.
type verifyResponse struct {
	ProfileExists      bool   `json:"profile_exists"`
	WorkspaceExists    bool   `json:"workspace_exists"`
	WorkspaceID        string `json:"workspace_id"`
	SubscriptionStatus string `json:"subscription_status"`
	SubscriptionPlan   string `json:"subscription_plan"`
	NeedsPayment       bool   `json:"needs_payment"`
	Error              string `json:"error"`
}

// VerifyProfile reads the authoritative readiness facts for the user.
func (c *ProfileClient) VerifyProfile(ctx context.Context, userID string) (domain.VerifyResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/profiles/"+url.PathEscape(userID)+"/verify", "")
	if err != nil {
		return domain.VerifyResult{}, fmt.Errorf("verify profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.VerifyResult{}, fmt.Errorf("verify profile: unexpected status %d", resp.StatusCode)
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.VerifyResult{}, fmt.Errorf("verify profile: decoding response: %w", err)
	}
	if payload.Error != "" {
		return domain.VerifyResult{}, fmt.Errorf("verify profile: backend error: %s", payload.Error)
	}

	return domain.VerifyResult{
		ProfileExists:      payload.ProfileExists,
		WorkspaceExists:    payload.WorkspaceExists,
		WorkspaceID:        payload.WorkspaceID,
		SubscriptionStatus: payload.SubscriptionStatus,
		SubscriptionPlan:   payload.SubscriptionPlan,
		NeedsPayment:       payload.NeedsPayment,
	}, nil
}

// FetchWorkspace warms the backend's workspace detail cache. The response
// body is discarded; only reachability matters.
func (c *ProfileClient) FetchWorkspace(ctx context.Context, workspaceID string) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/workspaces/"+url.PathEscape(workspaceID), "")
	if err != nil {
		return fmt.Errorf("fetch workspace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch workspace: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *ProfileClient) do(ctx context.Context, method, path, body string) (*http.Response, error) {
	return doJSON(ctx, c.http, method, c.baseURL+path, c.apiKey, body)
}
