package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/scaledmoney/tiergate/pkg/billing"
	"github.com/scaledmoney/tiergate/pkg/billing/internal"
	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// handleWebhook receives Stripe event deliveries. Response codes are the
// only retry control available: 200 acknowledges (including intentionally
// ignored events), 400 drops unauthentic deliveries, 500 asks Stripe to
// redeliver.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if p.webhookSecret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	event, err := p.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return
	}

	eventType := string(event.Type)

	result, err := p.Reconcile(r.Context(), &event)
	if err != nil {
		p.logger.Error("webhook reconciliation failed",
			tiergate.Field{Key: "event_type", Value: eventType},
			tiergate.Field{Key: "error", Value: err.Error()},
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})

	p.metrics.RecordWebhookEvent(providerName, eventType, string(result.Outcome))
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

// Reconcile maps one decoded provider event onto an idempotent mutation
// of the entitlement store. Events arrive at least once and possibly out
// of order, so every write is an upsert keyed by user id or a conditional
// update keyed by provider customer id; reapplying the same event is a
// no-op at the row level.
func (p *Provider) Reconcile(ctx context.Context, event *stripe.Event) (billing.Result, error) {
	switch event.Type {
	case "checkout.session.completed":
		return p.applyCheckoutCompleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.applyRenewal(ctx, event)
	case "customer.subscription.deleted", "invoice.payment_failed":
		return p.applyDowngrade(ctx, event)
	default:
		return billing.Ignored("unhandled event type"), nil
	}
}

// applyCheckoutCompleted upgrades the user named by the session's
// client_reference_id to pro. The reference is the linkage between
// Stripe's identity and ours; without it the event cannot be attributed
// to anyone and is acknowledged without mutation.
func (p *Provider) applyCheckoutCompleted(ctx context.Context, event *stripe.Event) (billing.Result, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return billing.Result{}, fmt.Errorf("%w: checkout session: %v", billing.ErrInvalidWebhookPayload, err)
	}

	userID := session.ClientReferenceID
	if userID == "" {
		p.logger.Warn("checkout session has no client_reference_id",
			tiergate.Field{Key: "session_id", Value: session.ID},
		)
		return billing.Ignored("missing client_reference_id"), nil
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	var periodEnd *time.Time
	if subscriptionID != "" {
		sub, err := p.retrieveSubscription(ctx, subscriptionID)
		if err != nil {
			return billing.Result{}, fmt.Errorf("failed to fetch subscription %s: %w", subscriptionID, err)
		}
		periodEnd = subscriptionPeriodEnd(sub)
	}

	ent := &tiergate.Entitlement{
		UserID:                 userID,
		Tier:                   tiergate.TierPro,
		ProviderCustomerID:     customerID,
		ProviderSubscriptionID: subscriptionID,
		CurrentPeriodEnd:       periodEnd,
	}
	if err := p.store.UpsertEntitlement(ctx, ent); err != nil {
		return billing.Result{}, fmt.Errorf("failed to upsert entitlement: %w", err)
	}

	p.metrics.RecordTierChange(providerName, string(tiergate.TierFree), string(tiergate.TierPro))
	p.logger.Info("user upgraded to pro",
		tiergate.Field{Key: "user_id", Value: userID},
		tiergate.Field{Key: "customer_id", Value: customerID},
	)
	return billing.Result{Outcome: billing.OutcomeUpgraded, UserID: userID}, nil
}

// applyRenewal refreshes the period end for a renewal-cycle invoice. The
// very first invoice of a subscription has billing_reason
// "subscription_create" and is already covered by the checkout-completed
// path; counting it here would double-apply the upgrade.
func (p *Provider) applyRenewal(ctx context.Context, event *stripe.Event) (billing.Result, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return billing.Result{}, fmt.Errorf("%w: invoice: %v", billing.ErrInvalidWebhookPayload, err)
	}

	if invoice.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return billing.Ignored("billing_reason is not subscription_cycle"), nil
	}

	customerID := customerIDFromPayload(event.Data.Raw)
	if customerID == "" {
		p.logger.Warn("renewal invoice has no customer",
			tiergate.Field{Key: "invoice_id", Value: invoice.ID},
		)
		return billing.Ignored("no customer on invoice"), nil
	}

	subscriptionID := subscriptionIDFromInvoice(event.Data.Raw)
	if subscriptionID == "" {
		return billing.Ignored("no subscription on invoice"), nil
	}

	sub, err := p.retrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return billing.Result{}, fmt.Errorf("failed to fetch subscription %s: %w", subscriptionID, err)
	}

	periodEnd := subscriptionPeriodEnd(sub)
	if periodEnd == nil {
		p.logger.Warn("subscription has no current period end",
			tiergate.Field{Key: "subscription_id", Value: subscriptionID},
		)
		return billing.Ignored("subscription has no period end"), nil
	}

	if err := p.store.RenewEntitlementByCustomer(ctx, customerID, *periodEnd); err != nil {
		return billing.Result{}, fmt.Errorf("failed to renew entitlement: %w", err)
	}

	p.logger.Info("subscription renewed",
		tiergate.Field{Key: "customer_id", Value: customerID},
		tiergate.Field{Key: "period_end", Value: periodEnd.UTC().Format(time.RFC3339)},
	)
	return billing.Result{Outcome: billing.OutcomeRenewed}, nil
}

// applyDowngrade handles subscription deletion and failed payments by
// setting the matched entitlement back to free. Provider ids are kept on
// the row as historical reference.
func (p *Provider) applyDowngrade(ctx context.Context, event *stripe.Event) (billing.Result, error) {
	customerID := customerIDFromPayload(event.Data.Raw)
	if customerID == "" {
		p.logger.Warn("downgrade event has no resolvable customer",
			tiergate.Field{Key: "event_type", Value: string(event.Type)},
		)
		return billing.Ignored("unresolvable customer"), nil
	}

	if err := p.store.DowngradeEntitlementByCustomer(ctx, customerID); err != nil {
		return billing.Result{}, fmt.Errorf("failed to downgrade entitlement: %w", err)
	}

	p.metrics.RecordTierChange(providerName, string(tiergate.TierPro), string(tiergate.TierFree))
	p.logger.Info("subscription downgraded to free",
		tiergate.Field{Key: "customer_id", Value: customerID},
		tiergate.Field{Key: "event_type", Value: string(event.Type)},
	)
	return billing.Result{Outcome: billing.OutcomeDowngraded}, nil
}

// customerIDFromPayload extracts the customer id from an event payload.
// Stripe serializes expandable fields either as a bare id string or as an
// embedded object; both forms appear in practice depending on event type
// and API version, so each is handled explicitly.
func customerIDFromPayload(raw json.RawMessage) string {
	var payload struct {
		Customer json.RawMessage `json:"customer"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Customer) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(payload.Customer, &id); err == nil {
		return id
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload.Customer, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// subscriptionIDFromInvoice extracts the subscription id from a raw
// invoice payload, accepting both the id-string and embedded-object forms.
func subscriptionIDFromInvoice(raw json.RawMessage) string {
	var payload struct {
		Subscription json.RawMessage `json:"subscription"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Subscription) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(payload.Subscription, &id); err == nil {
		return id
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload.Subscription, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// subscriptionPeriodEnd returns the latest current_period_end across the
// subscription's items, or nil when none is set. Recent API versions
// moved the period fields from the subscription onto its items.
func subscriptionPeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil {
		return nil
	}
	var latest int64
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd > latest {
			latest = item.CurrentPeriodEnd
		}
	}
	if latest == 0 {
		return nil
	}
	t := time.Unix(latest, 0).UTC()
	return &t
}
