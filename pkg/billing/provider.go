// Package billing defines the provider-agnostic billing contract: the
// Provider interface, the shared configuration, the reconcile outcome
// taxonomy and the metrics hooks. The Stripe implementation lives in
// pkg/billing/stripe.
package billing

import (
	"context"
	"net/http"
)

// Provider is the interface a payment backend must implement. The
// application talks only to this; swapping Stripe for another provider
// requires no logic changes elsewhere.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that receives the provider's
	// asynchronous events and reconciles them into the entitlement store.
	// The handler owns signature verification, response codes and the
	// ack-vs-retry decision internally.
	WebhookHandler() http.Handler

	// CheckoutURL creates a provider-hosted payment session for the given
	// user and plan key and returns the redirect URL.
	CheckoutURL(ctx context.Context, userID, plan string) (string, error)
}
