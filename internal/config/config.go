package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment surface of the service.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"readygate.db"`

	// Identity backend (Ory Kratos public API).
	KratosURL    string `env:"KRATOS_URL" envDefault:"http://localhost:4433"`
	SessionToken string `env:"SESSION_TOKEN"`

	// Profile/workspace verification backend.
	BackendURL    string `env:"BACKEND_URL" envDefault:"http://localhost:9080"`
	BackendAPIKey string `env:"BACKEND_API_KEY"`

	// Billing backend.
	BillingURL        string `env:"BILLING_URL" envDefault:"http://localhost:9090"`
	BillingAPIKey     string `env:"BILLING_API_KEY"`
	PaymentSuccessURL string `env:"PAYMENT_SUCCESS_URL" envDefault:"/onboarding/payment/success"`
	PaymentFailureURL string `env:"PAYMENT_FAILURE_URL" envDefault:"/onboarding/payment/failure"`

	Routes    Routes    `envPrefix:"ROUTE_"`
	Readiness Readiness `envPrefix:"READINESS_"`
}

// Routes holds the navigation targets the redirect engine steers between,
// plus the public prefixes exempt from readiness gating.
type Routes struct {
	OnboardingEntry string   `env:"ONBOARDING_ENTRY" envDefault:"/onboarding/profile"`
	PlanSelection   string   `env:"PLAN_SELECTION" envDefault:"/onboarding/plans"`
	MainApp         string   `env:"MAIN_APP" envDefault:"/dashboard"`
	PublicPrefixes  []string `env:"PUBLIC_PREFIXES" envDefault:"/,/login,/signup,/auth"`
}

// Readiness tunes the checker's cache, coalescing, and retry behavior.
type Readiness struct {
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"500ms"`
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay     time.Duration `env:"RETRY_DELAY" envDefault:"2s"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// IsPublicRoute reports whether the route is exempt from readiness gating.
// The root prefix "/" only matches the root route itself, otherwise every
// route would be public.
func (r Routes) IsPublicRoute(route string) bool {
	for _, prefix := range r.PublicPrefixes {
		if prefix == "/" {
			if route == "/" {
				return true
			}
			continue
		}
		if route == prefix || (len(route) > len(prefix) && route[:len(prefix)] == prefix && route[len(prefix)] == '/') {
			return true
		}
	}
	return false
}
