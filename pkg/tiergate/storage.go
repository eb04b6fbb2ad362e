package tiergate

import (
	"context"
	"time"
)

// Store is the persistence contract for entitlement records. All writes
// are idempotent upserts or key-matched conditional updates so that
// redelivered provider events are safe to reapply; the store's atomic
// per-row write semantics are the only concurrency primitive relied upon.
//
// Implementations must stamp UpdatedAt on every write.
type Store interface {
	// GetEntitlement returns the entitlement for a user, or
	// ErrEntitlementNotFound if none exists.
	GetEntitlement(ctx context.Context, userID string) (*Entitlement, error)

	// UpsertEntitlement creates or replaces the entitlement keyed by
	// Entitlement.UserID.
	UpsertEntitlement(ctx context.Context, ent *Entitlement) error

	// RenewEntitlementByCustomer sets tier=pro and refreshes the period end
	// on the record matching the provider customer id. Matching zero
	// records is not an error.
	RenewEntitlementByCustomer(ctx context.Context, customerID string, periodEnd time.Time) error

	// DowngradeEntitlementByCustomer sets tier=free on the record matching
	// the provider customer id, leaving the provider ids intact. Matching
	// zero records is not an error.
	DowngradeEntitlementByCustomer(ctx context.Context, customerID string) error
}

// PlanStore is the persistence contract for sprint-plan snapshots.
// Saves are upserts keyed by (user id, slot).
type PlanStore interface {
	// SavePlan creates or replaces the plan in the given user's slot.
	SavePlan(ctx context.Context, plan *SprintPlan) error

	// ListPlans returns all saved plans for a user, ordered by slot.
	ListPlans(ctx context.Context, userID string) ([]*SprintPlan, error)

	// DeletePlan removes a single slot. Deleting an empty slot is not an error.
	DeletePlan(ctx context.Context, userID string, slot int) error
}
