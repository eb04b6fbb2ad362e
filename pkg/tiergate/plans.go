package tiergate

import (
	"context"
	"fmt"
)

// Plans is a thin persistence wrapper for sprint-plan snapshots. It holds
// no state of its own; all decisions beyond input validation belong to
// the PlanStore.
type Plans struct {
	store PlanStore
}

// NewPlans creates a Plans service over the given store.
func NewPlans(store PlanStore) *Plans {
	return &Plans{store: store}
}

// Save upserts the plan into its (user, slot) position.
func (p *Plans) Save(ctx context.Context, plan *SprintPlan) error {
	if plan == nil || plan.UserID == "" {
		return ErrNotAuthenticated
	}
	if plan.Slot < 0 || plan.Slot >= MaxPlanSlots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, plan.Slot)
	}
	return p.store.SavePlan(ctx, plan)
}

// Load returns a fixed MaxPlanSlots-element slice indexed by slot; empty
// slots are nil. A user with no plans gets all-nil, not an error.
func (p *Plans) Load(ctx context.Context, userID string) ([]*SprintPlan, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	plans, err := p.store.ListPlans(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	slots := make([]*SprintPlan, MaxPlanSlots)
	for _, plan := range plans {
		if plan.Slot >= 0 && plan.Slot < MaxPlanSlots {
			slots[plan.Slot] = plan
		}
	}
	return slots, nil
}

// Delete removes a single slot.
func (p *Plans) Delete(ctx context.Context, userID string, slot int) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if slot < 0 || slot >= MaxPlanSlots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return p.store.DeletePlan(ctx, userID, slot)
}
