package api

import (
	"time"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// MeResponse is the combined membership view returned by GetMe
type MeResponse struct {
	UserID           string                 `json:"user_id"`
	Tier             string                 `json:"tier"` // "free" or "pro"
	Pro              bool                   `json:"pro"`
	CurrentPeriodEnd *time.Time             `json:"current_period_end,omitempty"`
	Plans            []*tiergate.SprintPlan `json:"plans,omitempty"` // fixed slot positions, empty slots are null
}

// CheckoutRequest is the body accepted by CreateCheckout
type CheckoutRequest struct {
	// UserID is a fallback for deployments without auth middleware in
	// front of the handler; an authenticated user always wins.
	UserID string `json:"userId,omitempty"`
	Plan   string `json:"plan,omitempty"`
}

// CheckoutResponse carries the hosted payment page URL
type CheckoutResponse struct {
	URL string `json:"url"`
}
