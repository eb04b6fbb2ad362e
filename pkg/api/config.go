package api

import (
	"fmt"
	"net/http"

	"github.com/scaledmoney/tiergate/pkg/billing"
	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Config holds configuration for the member API handler
type Config struct {
	// Reader resolves user tiers (required)
	Reader *tiergate.Reader

	// Plans persists sprint-plan snapshots. If nil, the plan endpoints
	// respond 404 and GetMe omits plans.
	Plans *tiergate.Plans

	// Billing creates checkout sessions. If nil, CreateCheckout
	// responds 503.
	Billing billing.Provider

	// GetUserID extracts the authenticated user ID from the request
	// (required). Same pattern as middleware/http.
	GetUserID func(*http.Request) string

	// DefaultPlan is used when a checkout request names no plan
	// (default: "pro_monthly")
	DefaultPlan string

	// OnError handles errors (auth, internal, etc.)
	// If nil, uses default JSON error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional; defaults to no-op
	Logger tiergate.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Reader == nil {
		return fmt.Errorf("reader is required")
	}
	if c.GetUserID == nil {
		return fmt.Errorf("getUserID is required")
	}
	return nil
}

// NewHandler creates a new member API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.DefaultPlan == "" {
		config.DefaultPlan = "pro_monthly"
	}
	if config.Logger == nil {
		config.Logger = &tiergate.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// Helper functions for common UserID extraction patterns

// FromHeader returns a GetUserID function that extracts user ID from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetUserID function that extracts user ID from request context
// Uses the same context key pattern as middleware/http
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}
