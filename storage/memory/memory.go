// Package memory provides in-memory implementations of the tiergate
// Store and PlanStore interfaces, intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Storage implements tiergate.Store and tiergate.PlanStore using maps
// guarded by a mutex, which stands in for the per-row atomicity a real
// backend provides.
type Storage struct {
	mu           sync.RWMutex
	entitlements map[string]*tiergate.Entitlement
	plans        map[string]*tiergate.SprintPlan
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{
		entitlements: make(map[string]*tiergate.Entitlement),
		plans:        make(map[string]*tiergate.SprintPlan),
	}
}

// GetEntitlement implements tiergate.Store.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*tiergate.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entitlements[userID]
	if !ok {
		return nil, tiergate.ErrEntitlementNotFound
	}

	// Return a copy to prevent external mutations
	entCopy := *ent
	return &entCopy, nil
}

// UpsertEntitlement implements tiergate.Store.
func (s *Storage) UpsertEntitlement(ctx context.Context, ent *tiergate.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return tiergate.ErrInvalidEntitlement
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entCopy := *ent
	entCopy.UpdatedAt = time.Now().UTC()
	s.entitlements[ent.UserID] = &entCopy
	return nil
}

// RenewEntitlementByCustomer implements tiergate.Store.
func (s *Storage) RenewEntitlementByCustomer(ctx context.Context, customerID string, periodEnd time.Time) error {
	if customerID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ent := range s.entitlements {
		if ent.ProviderCustomerID == customerID {
			ent.Tier = tiergate.TierPro
			end := periodEnd
			ent.CurrentPeriodEnd = &end
			ent.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// DowngradeEntitlementByCustomer implements tiergate.Store.
func (s *Storage) DowngradeEntitlementByCustomer(ctx context.Context, customerID string) error {
	if customerID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ent := range s.entitlements {
		if ent.ProviderCustomerID == customerID {
			ent.Tier = tiergate.TierFree
			ent.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// SavePlan implements tiergate.PlanStore.
func (s *Storage) SavePlan(ctx context.Context, plan *tiergate.SprintPlan) error {
	if plan == nil || plan.UserID == "" {
		return fmt.Errorf("invalid plan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	planCopy := *plan
	planCopy.SavedAt = time.Now().UTC()
	s.plans[planKey(plan.UserID, plan.Slot)] = &planCopy
	return nil
}

// ListPlans implements tiergate.PlanStore.
func (s *Storage) ListPlans(ctx context.Context, userID string) ([]*tiergate.SprintPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var plans []*tiergate.SprintPlan
	for slot := 0; slot < tiergate.MaxPlanSlots; slot++ {
		if plan, ok := s.plans[planKey(userID, slot)]; ok {
			planCopy := *plan
			plans = append(plans, &planCopy)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Slot < plans[j].Slot })
	return plans, nil
}

// DeletePlan implements tiergate.PlanStore.
func (s *Storage) DeletePlan(ctx context.Context, userID string, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.plans, planKey(userID, slot))
	return nil
}

func planKey(userID string, slot int) string {
	return fmt.Sprintf("%s:%d", userID, slot)
}
