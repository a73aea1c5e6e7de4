package kratos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	kratosclient "github.com/ory/kratos-client-go"

	"github.com/nexory/readygate/internal/domain"
)

// Compile-time check: Provider implements domain.IdentityProvider.
var _ domain.IdentityProvider = (*Provider)(nil)

// Provider implements the identity backend over the Ory Kratos public API.
// Credential verification, session persistence, and token issuance all live
// in Kratos; this adapter only maps flows to the identity port.
type Provider struct {
	client *kratosclient.APIClient

	// sessionToken is the persisted session handle used for resume.
	// Empty means no session to resume. Guarded by mu: sign-in and
	// sign-out write it while concurrent handlers resume.
	mu           sync.Mutex
	sessionToken string
}

func (p *Provider) token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionToken
}

func (p *Provider) setToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionToken = token
}

// New creates a provider against the Kratos public endpoint. sessionToken
// may be empty when no session has been persisted.
func New(baseURL, sessionToken string) *Provider {
	cfg := kratosclient.NewConfiguration()
	cfg.Servers = kratosclient.ServerConfigurations{{URL: baseURL}}

	return &Provider{
		client:       kratosclient.NewAPIClient(cfg),
		sessionToken: sessionToken,
	}
}

// Resume checks the persisted session token against Kratos. Returns
// ErrUnauthenticated when there is no token or Kratos rejects it.
func (p *Provider) Resume(ctx context.Context) (domain.Identity, error) {
	token := p.token()
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	session, resp, err := p.client.FrontendAPI.ToSession(ctx).
		XSessionToken(token).
		Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return domain.Identity{}, domain.ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("checking session: %w", err)
	}

	return identityFromSession(session, token), nil
}

// SignIn runs a native password login flow: create the flow, then submit
// the credentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	flow, _, err := p.client.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("creating login flow: %w", err)
	}

	body := kratosclient.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: email,
		Password:   password,
	}

	login, _, err := p.client.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratosclient.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&body)).
		Execute()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("submitting login flow: %w", err)
	}

	token := ""
	if login.SessionToken != nil {
		token = *login.SessionToken
	}
	p.setToken(token)

	return identityFromSession(&login.Session, token), nil
}

// SignInWithProvider creates a browser login flow and returns the URL the
// caller must redirect the user to; the federated provider completes the
// flow out of band.
func (p *Provider) SignInWithProvider(ctx context.Context, provider, returnTo string) (string, error) {
	req := p.client.FrontendAPI.CreateBrowserLoginFlow(ctx)
	if returnTo != "" {
		req = req.ReturnTo(returnTo)
	}

	flow, _, err := req.Execute()
	if err != nil {
		return "", fmt.Errorf("creating provider login flow: %w", err)
	}

	sep := "?"
	if strings.Contains(flow.Ui.Action, "?") {
		sep = "&"
	}
	return flow.Ui.Action + sep + "provider=" + url.QueryEscape(provider), nil
}

// SignOut invalidates the session in Kratos. The caller clears local state
// regardless of the outcome.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	resp, err := p.client.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(kratosclient.PerformNativeLogoutBody{SessionToken: token}).
		Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			// Already invalid remotely; nothing left to revoke.
			return nil
		}
		return fmt.Errorf("revoking session: %w", err)
	}

	p.setToken("")
	return nil
}

func identityFromSession(session *kratosclient.Session, token string) domain.Identity {
	identity := domain.Identity{Token: token}
	if session == nil || session.Identity == nil {
		return identity
	}

	identity.UserID = session.Identity.Id
	identity.Email = traitString(session.Identity.Traits, "email")
	identity.Name = traitString(session.Identity.Traits, "name")
	return identity
}

// traitString pulls a flat string trait out of the schema-less identity
// traits document.
func traitString(traits interface{}, key string) string {
	m, ok := traits.(map[string]interface{})
	if !ok {
		return ""
	}
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return v
}
