package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"github.com/scaledmoney/tiergate/pkg/billing"
)

// VerifyEvent authenticates a webhook delivery and decodes it into a
// typed event. The payload must be the raw request bytes exactly as
// received; any re-serialization upstream invalidates the signature.
// Signature and timestamp-tolerance checking is delegated to stripe-go,
// which verifies the keyed HMAC embedded in the Stripe-Signature header.
//
// On failure the returned error wraps billing.ErrInvalidWebhookSignature
// and the event must not be processed.
func (p *Provider) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := stripe.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookSignature, err)
	}
	return event, nil
}
