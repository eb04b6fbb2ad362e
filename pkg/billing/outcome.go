package billing

// Outcome classifies what a reconciliation did to the entitlement store.
// A failed reconciliation is not an Outcome; it is the error return, and
// the webhook handler answers it with a 5xx so the provider redelivers.
type Outcome string

const (
	// OutcomeUpgraded means a completed checkout upserted a pro entitlement
	OutcomeUpgraded Outcome = "upgraded"

	// OutcomeRenewed means a renewal-cycle invoice refreshed the period end
	OutcomeRenewed Outcome = "renewed"

	// OutcomeDowngraded means a cancellation or payment failure set the
	// entitlement back to free
	OutcomeDowngraded Outcome = "downgraded"

	// OutcomeIgnored means the event was intentionally not applied. Ignored
	// events are still acknowledged so the provider stops redelivering.
	OutcomeIgnored Outcome = "ignored"
)

// Result is the outcome of reconciling a single provider event.
type Result struct {
	Outcome Outcome

	// Reason is set for OutcomeIgnored (e.g. "missing client_reference_id",
	// "unhandled event type")
	Reason string

	// UserID is the affected user, when the event resolved one
	UserID string
}

// Ignored builds an OutcomeIgnored result with the given reason.
func Ignored(reason string) Result {
	return Result{Outcome: OutcomeIgnored, Reason: reason}
}
