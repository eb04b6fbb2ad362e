package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/scaledmoney/tiergate/pkg/billing"
)

// CheckoutURL creates a Stripe Checkout session in subscription mode and
// returns the hosted payment page URL. The user id is threaded through
// the session twice: as client_reference_id (read back by the webhook
// reconciler) and as subscription metadata (visible on later lifecycle
// objects). This linkage is what lets an asynchronous provider event be
// mapped back to an internal user.
func (p *Provider) CheckoutURL(ctx context.Context, userID, plan string) (string, error) {
	startTime := time.Now()

	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	priceID, ok := p.planPrices[plan]
	if !ok || priceID == "" {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "plan_not_found")
		return "", fmt.Errorf("%w: %q", billing.ErrPlanNotConfigured, plan)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(p.successURL),
		CancelURL:           stripe.String(p.cancelURL),
		ClientReferenceID:   stripe.String(userID),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("user_id", userID)

	session, err := p.stripeClient.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "error")
		p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))
		return "", fmt.Errorf("%w: failed to create checkout session: %v", billing.ErrProviderAPIError, err)
	}

	p.metrics.RecordAPICall(providerName, "/checkout/sessions", "success")
	p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))

	return session.URL, nil
}
