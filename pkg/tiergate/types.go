// Package tiergate holds the core entitlement domain: the per-user tier
// record, the storage contracts it lives behind, and the client-side
// reader used for access gating. Billing providers that write to the
// store live under pkg/billing.
package tiergate

import "time"

// Tier is a membership level. Absence of an entitlement record is
// equivalent to TierFree.
type Tier string

const (
	// TierFree is the default tier for users without a paid subscription
	TierFree Tier = "free"
	// TierPro is the paid tier, granted by a completed checkout
	TierPro Tier = "pro"
)

// Entitlement is the current billing state of a single user. Exactly one
// record exists per user once any payment event has been processed for them.
type Entitlement struct {
	// UserID is the stable internal identifier of the user (primary key)
	UserID string

	// Tier is the current membership level
	Tier Tier

	// ProviderCustomerID is the billing customer id assigned by the payment
	// provider. Empty until the first successful checkout; never cleared on
	// downgrade (kept as historical reference).
	ProviderCustomerID string

	// ProviderSubscriptionID is the provider's recurring-agreement id.
	// Empty for one-time payments; never cleared on downgrade.
	ProviderSubscriptionID string

	// CurrentPeriodEnd is when the current paid period expires (nil if unknown)
	CurrentPeriodEnd *time.Time

	// UpdatedAt is set by the store on every write
	UpdatedAt time.Time
}

// MaxPlanSlots is the number of sprint-plan save slots per user.
const MaxPlanSlots = 3

// SprintPlan is a saved planning-tool snapshot. The plan contents are
// opaque to this package; a handful of fields are lifted out of the
// snapshot for querying.
type SprintPlan struct {
	// UserID is the owning user; Slot is the save slot (0..MaxPlanSlots-1).
	// Together they form the plan's unique key.
	UserID string `json:"userId"`
	Slot   int    `json:"slot"`

	SprintNum  *int       `json:"sprintNum,omitempty"`
	SprintGoal string     `json:"sprintGoal,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	LengthDays *int       `json:"lengthDays,omitempty"`

	// Data is the full snapshot as produced by the planning tool
	Data map[string]interface{} `json:"data,omitempty"`

	// SavedAt is set by the store on every write
	SavedAt time.Time `json:"savedAt"`
}
