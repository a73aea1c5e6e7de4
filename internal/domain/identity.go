package domain

// Identity is the authenticated user as published by the session store.
// It is replaced wholesale on every identity transition and never mutated
// in place.
type Identity struct {
	UserID string
	Email  string
	Name   string
	// Token is the raw backend session handle. Opaque to everything
	// except the identity adapter that issued it.
	Token string
}

// AuthEvent classifies an identity transition.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "signed_in"
	AuthSignedOut      AuthEvent = "signed_out"
	AuthTokenRefreshed AuthEvent = "token_refreshed"
)
