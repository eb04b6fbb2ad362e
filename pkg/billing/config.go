package billing

import (
	"net/http"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Config is the configuration shared by all billing providers. Provider
// packages embed it in their own Config alongside provider-specific keys.
type Config struct {
	// Store is the entitlement store the reconciler writes to (required)
	Store tiergate.Store

	// PlanPrices maps application plan keys to provider price ids, e.g.
	// {"pro_monthly": "price_123", "pro_annual": "price_456"}.
	// Checkout requests with a plan key not in this map are rejected.
	PlanPrices map[string]string

	// SuccessURL and CancelURL are where the provider sends the user after
	// a hosted checkout finishes or is abandoned.
	SuccessURL string
	CancelURL  string

	// HTTPClient is an optional client for outbound provider API calls.
	// If nil, a default client with a 10s timeout is used.
	HTTPClient *http.Client

	// Logger receives reconciler warnings (missing linkage reference,
	// unresolvable customer). If nil, warnings are dropped.
	Logger tiergate.Logger

	// Metrics is an optional collector for webhook/checkout instrumentation.
	// If nil, metrics are silently ignored.
	// Use billing/metrics/prometheus.NewMetrics for Prometheus metrics.
	Metrics Metrics
}
