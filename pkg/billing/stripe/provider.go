// Package stripe implements the billing.Provider interface for Stripe:
// webhook event verification, reconciliation of subscription lifecycle
// events into the entitlement store, and Checkout session creation.
package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/scaledmoney/tiergate/pkg/billing"
	"github.com/scaledmoney/tiergate/pkg/billing/internal"
	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

const (
	providerName             = "stripe"
	defaultHTTPTimeout       = 10 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
)

// Config extends billing.Config with Stripe-specific options.
type Config struct {
	billing.Config // Base config (Store, PlanPrices, URLs, Logger, Metrics)

	// StripeAPIKey is the secret key for outbound API calls (sk_...)
	StripeAPIKey string

	// StripeWebhookSecret is the webhook endpoint signing secret (whsec_...).
	// May be left empty on instances that never receive webhooks; the
	// webhook handler then refuses every delivery with 503.
	StripeWebhookSecret string
}

// Provider implements billing.Provider for Stripe.
type Provider struct {
	store         tiergate.Store
	planPrices    map[string]string
	successURL    string
	cancelURL     string
	webhookSecret string
	stripeClient  *stripe.Client
	rateLimiter   *internal.RateLimiter
	logger        tiergate.Logger
	metrics       billing.Metrics

	// retrieveSubscription wraps the Stripe subscriptions API so tests can
	// substitute a fake without network access.
	retrieveSubscription func(ctx context.Context, id string) (*stripe.Subscription, error)
}

// NewProvider creates a new Stripe billing provider.
func NewProvider(config Config) (*Provider, error) {
	if config.Store == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	stripeClient := stripe.NewClient(apiKey,
		stripe.WithBackends(stripe.NewBackendsWithConfig(&stripe.BackendConfig{
			HTTPClient: httpClient,
		})),
	)

	logger := config.Logger
	if logger == nil {
		logger = &tiergate.NoopLogger{}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	p := &Provider{
		store:         config.Store,
		planPrices:    config.PlanPrices,
		successURL:    config.SuccessURL,
		cancelURL:     config.CancelURL,
		webhookSecret: strings.TrimSpace(config.StripeWebhookSecret),
		stripeClient:  stripeClient,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		logger:        logger,
		metrics:       metrics,
	}
	p.retrieveSubscription = func(ctx context.Context, id string) (*stripe.Subscription, error) {
		return p.stripeClient.V1Subscriptions.Retrieve(ctx, id, nil)
	}
	return p, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks, wrapped
// with per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}
