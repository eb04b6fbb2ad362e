package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is missing
	// required configuration (store, API key, webhook secret)
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature
	// verification fails; the event must be dropped, never processed
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when a webhook payload cannot be parsed
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrPlanNotConfigured is returned when a checkout plan key has no
	// configured provider price
	ErrPlanNotConfigured = errors.New("plan not configured in price mapping")

	// ErrProviderAPIError is returned when the provider's API returns an error
	ErrProviderAPIError = errors.New("billing provider API error")
)
