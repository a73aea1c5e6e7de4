package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nexory/readygate/internal/app"
	"github.com/nexory/readygate/internal/domain"
)

// ReadinessResponse is the API representation of a readiness snapshot.
type ReadinessResponse struct {
	IsReady            bool   `json:"is_ready" doc:"Fully onboarded and subscribed"`
	ProfileExists      bool   `json:"profile_exists" doc:"Backend profile provisioned"`
	WorkspaceExists    bool   `json:"workspace_exists" doc:"Workspace provisioned"`
	WorkspaceID        string `json:"workspace_id,omitempty" doc:"Active workspace identifier"`
	SubscriptionStatus string `json:"subscription_status,omitempty" doc:"Billing subscription state"`
	SubscriptionPlan   string `json:"subscription_plan,omitempty" doc:"Billing plan name"`
	NeedsPayment       bool   `json:"needs_payment" doc:"Payment required before full access"`
	Error              string `json:"error,omitempty" doc:"Last verification failure, if any"`
	FetchedAt          string `json:"fetched_at" doc:"Verification timestamp (ISO 8601)"`
}

const timeFormat = "2006-01-02T15:04:05Z"

func toReadinessResponse(s domain.ReadinessSnapshot) ReadinessResponse {
	return ReadinessResponse{
		IsReady:            s.IsReady,
		ProfileExists:      s.ProfileExists,
		WorkspaceExists:    s.WorkspaceExists,
		WorkspaceID:        s.WorkspaceID,
		SubscriptionStatus: s.SubscriptionStatus,
		SubscriptionPlan:   s.SubscriptionPlan,
		NeedsPayment:       s.NeedsPayment,
		Error:              s.Error,
		FetchedAt:          s.FetchedAt.UTC().Format(timeFormat),
	}
}

// IdentityResponse is the API representation of the signed-in user.
type IdentityResponse struct {
	UserID string `json:"user_id" doc:"Unique identifier"`
	Email  string `json:"email,omitempty" doc:"Primary email"`
	Name   string `json:"name,omitempty" doc:"Display name"`
}

// AttemptResponse is the API representation of a payment attempt.
type AttemptResponse struct {
	AttemptID  string `json:"attempt_id,omitempty" doc:"Billing attempt identifier"`
	Plan       string `json:"plan,omitempty" doc:"Requested plan"`
	Status     string `json:"status" doc:"Attempt lifecycle state"`
	PaymentURL string `json:"payment_url,omitempty" doc:"External payment page"`
	Error      string `json:"error,omitempty" doc:"Failure reason, if any"`
}

func toAttemptResponse(a domain.PaymentAttempt) AttemptResponse {
	return AttemptResponse{
		AttemptID:  a.AttemptID,
		Plan:       a.Plan,
		Status:     string(a.Status),
		PaymentURL: a.PaymentURL,
		Error:      a.Error,
	}
}

// --- Status ---

// StatusBody is the composed observable status served to UI gates.
type StatusBody struct {
	IsAuthenticated     bool               `json:"is_authenticated" doc:"Whether a session is active"`
	IsCheckingReadiness bool               `json:"is_checking_readiness" doc:"Whether a readiness check is in flight or debouncing"`
	Identity            *IdentityResponse  `json:"identity,omitempty" doc:"Signed-in user, if any"`
	Readiness           *ReadinessResponse `json:"readiness,omitempty" doc:"Latest readiness snapshot, if any"`
	PaymentAttempt      AttemptResponse    `json:"payment_attempt" doc:"Current payment attempt"`
}

type StatusOutput struct {
	Body StatusBody
}

// --- Login ---

type LoginInput struct {
	Body struct {
		Email    string `json:"email" format:"email" doc:"Account email"`
		Password string `json:"password" minLength:"1" doc:"Account password"`
	}
}

type LoginOutput struct {
	Body struct {
		IsAuthenticated bool              `json:"is_authenticated"`
		Identity        *IdentityResponse `json:"identity,omitempty"`
	}
}

// --- Provider login ---

type ProviderLoginInput struct {
	Body struct {
		Provider string `json:"provider" minLength:"1" doc:"Federated identity provider (e.g. github, google)"`
		ReturnTo string `json:"return_to,omitempty" doc:"Route to return to after the provider flow"`
	}
}

type ProviderLoginOutput struct {
	Body struct {
		RedirectURL string `json:"redirect_url" doc:"Provider flow URL to navigate the user to"`
	}
}

// --- Refresh readiness ---

type RefreshInput struct {
	Force bool `query:"force" required:"false" doc:"Bypass and overwrite the readiness cache"`
}

type RefreshOutput struct {
	Body struct {
		Requested bool `json:"requested" doc:"False when no session is active"`
	}
}

// --- Navigation decide ---

type DecideInput struct {
	Body struct {
		Route string `json:"route" minLength:"1" doc:"Route the client is currently on"`
	}
}

type DecideOutput struct {
	Body struct {
		Action string `json:"action" doc:"stay, navigate, or error" enum:"stay,navigate,error"`
		Target string `json:"target,omitempty" doc:"Destination route when action is navigate"`
		Tag    string `json:"tag,omitempty" doc:"Reason tag for the decision"`
	}
}

// --- Payments ---

type InitiatePaymentInput struct {
	Body struct {
		Plan string `json:"plan" minLength:"1" doc:"Plan to purchase"`
	}
}

type InitiatePaymentOutput struct {
	Body struct {
		PaymentURL string `json:"payment_url" doc:"External payment page"`
		AttemptID  string `json:"attempt_id" doc:"Billing attempt identifier"`
	}
}

type GetPaymentInput struct {
	AttemptID string `path:"attemptId" doc:"Billing attempt identifier"`
}

type GetPaymentOutput struct {
	Body AttemptResponse
}

// Register adds all orchestrator API routes to the Huma API.
func Register(api huma.API, orch *app.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Get the composed session and readiness status",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
		return &StatusOutput{Body: toStatusBody(orch.Status())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/login",
		Summary:     "Sign in with email and password",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		if err := orch.Login(ctx, input.Body.Email, input.Body.Password); err != nil {
			// Credential verification failures all render the same way.
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		out := &LoginOutput{}
		st := orch.Status()
		out.Body.IsAuthenticated = st.IsAuthenticated
		if st.Identity != nil {
			out.Body.Identity = &IdentityResponse{
				UserID: st.Identity.UserID,
				Email:  st.Identity.Email,
				Name:   st.Identity.Name,
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login-with-provider",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/login/provider",
		Summary:     "Start a federated login flow",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, input *ProviderLoginInput) (*ProviderLoginOutput, error) {
		url, err := orch.LoginWithProvider(ctx, input.Body.Provider, input.Body.ReturnTo)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ProviderLoginOutput{}
		out.Body.RedirectURL = url
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/refresh",
		Summary:     "Re-validate the backend session",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
		orch.RefreshSession(ctx)
		return &StatusOutput{Body: toStatusBody(orch.Status())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/logout",
		Summary:     "Sign out",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
		orch.Logout(ctx)
		return &StatusOutput{Body: toStatusBody(orch.Status())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-readiness",
		Method:      http.MethodPost,
		Path:        "/api/v1/readiness/refresh",
		Summary:     "Request a readiness check",
		Tags:        []string{"Readiness"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		out := &RefreshOutput{}
		out.Body.Requested = orch.RefreshReadiness(ctx, input.Force)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-navigation",
		Method:      http.MethodPost,
		Path:        "/api/v1/navigation/decide",
		Summary:     "Evaluate the redirect rules for a route",
		Tags:        []string{"Navigation"},
	}, func(ctx context.Context, input *DecideInput) (*DecideOutput, error) {
		decision := orch.SetRoute(ctx, input.Body.Route)
		out := &DecideOutput{}
		out.Body.Action = string(decision.Action)
		out.Body.Target = decision.Target
		out.Body.Tag = string(decision.Tag)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "initiate-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/payments",
		Summary:     "Start a payment attempt",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *InitiatePaymentInput) (*InitiatePaymentOutput, error) {
		url, err := orch.InitiatePayment(ctx, input.Body.Plan)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &InitiatePaymentOutput{}
		out.Body.PaymentURL = url
		out.Body.AttemptID = orch.Status().PaymentAttempt.AttemptID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/api/v1/payments/{attemptId}",
		Summary:     "Poll a payment attempt",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *GetPaymentInput) (*GetPaymentOutput, error) {
		attempt, err := orch.CheckPaymentStatus(ctx, input.AttemptID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetPaymentOutput{Body: toAttemptResponse(attempt)}, nil
	})
}

func toStatusBody(st app.Status) StatusBody {
	body := StatusBody{
		IsAuthenticated:     st.IsAuthenticated,
		IsCheckingReadiness: st.IsCheckingReadiness,
		PaymentAttempt:      toAttemptResponse(st.PaymentAttempt),
	}
	if st.Identity != nil {
		body.Identity = &IdentityResponse{
			UserID: st.Identity.UserID,
			Email:  st.Identity.Email,
			Name:   st.Identity.Name,
		}
	}
	if st.Readiness != nil {
		r := toReadinessResponse(*st.Readiness)
		body.Readiness = &r
	}
	return body
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		return huma.Error401Unauthorized("authentication required")
	}

	if errors.Is(err, domain.ErrAttemptNotFound) || errors.Is(err, domain.ErrNoAttempt) {
		return huma.Error404NotFound("payment attempt not found")
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var payErr *domain.PaymentError
	if errors.As(err, &payErr) {
		return huma.Error502BadGateway(payErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
