// Package firestore provides a Google Cloud Firestore implementation of
// the tiergate Store and PlanStore interfaces. Document writes in
// Firestore are atomic per document, which is the idempotency primitive
// the reconciler relies on.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Storage implements tiergate.Store and tiergate.PlanStore using Firestore.
type Storage struct {
	client                 *firestore.Client
	entitlementsCollection string
	plansCollection        string
}

// Config holds Firestore storage configuration.
type Config struct {
	// EntitlementsCollection is the collection for user entitlements.
	// Default: "member_tiers"
	EntitlementsCollection string

	// PlansCollection is the collection for sprint plan snapshots.
	// Default: "sprint_plans"
	PlansCollection string
}

// New creates a new Firestore storage adapter.
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.EntitlementsCollection == "" {
		config.EntitlementsCollection = "member_tiers"
	}
	if config.PlansCollection == "" {
		config.PlansCollection = "sprint_plans"
	}

	return &Storage{
		client:                 client,
		entitlementsCollection: config.EntitlementsCollection,
		plansCollection:        config.PlansCollection,
	}, nil
}

// GetEntitlement implements tiergate.Store.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*tiergate.Entitlement, error) {
	snap, err := s.client.Collection(s.entitlementsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, tiergate.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	if !snap.Exists() {
		return nil, tiergate.ErrEntitlementNotFound
	}
	return entitlementFromDoc(userID, snap.Data()), nil
}

// UpsertEntitlement implements tiergate.Store.
func (s *Storage) UpsertEntitlement(ctx context.Context, ent *tiergate.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return tiergate.ErrInvalidEntitlement
	}

	data := map[string]interface{}{
		"tier":                     string(ent.Tier),
		"provider_customer_id":     ent.ProviderCustomerID,
		"provider_subscription_id": ent.ProviderSubscriptionID,
		"updated_at":               time.Now().UTC(),
	}
	if ent.CurrentPeriodEnd != nil {
		data["current_period_end"] = ent.CurrentPeriodEnd.UTC()
	}

	_, err := s.client.Collection(s.entitlementsCollection).Doc(ent.UserID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// RenewEntitlementByCustomer implements tiergate.Store.
func (s *Storage) RenewEntitlementByCustomer(ctx context.Context, customerID string, periodEnd time.Time) error {
	return s.updateByCustomer(ctx, customerID, []firestore.Update{
		{Path: "tier", Value: string(tiergate.TierPro)},
		{Path: "current_period_end", Value: periodEnd.UTC()},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
}

// DowngradeEntitlementByCustomer implements tiergate.Store.
func (s *Storage) DowngradeEntitlementByCustomer(ctx context.Context, customerID string) error {
	return s.updateByCustomer(ctx, customerID, []firestore.Update{
		{Path: "tier", Value: string(tiergate.TierFree)},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
}

// updateByCustomer applies updates to every entitlement doc matching the
// provider customer id. Zero matches is not an error.
func (s *Storage) updateByCustomer(ctx context.Context, customerID string, updates []firestore.Update) error {
	if customerID == "" {
		return nil
	}

	snaps, err := s.client.Collection(s.entitlementsCollection).
		Where("provider_customer_id", "==", customerID).
		Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to query entitlements by customer: %w", err)
	}

	for _, snap := range snaps {
		if _, err := snap.Ref.Update(ctx, updates); err != nil {
			// A doc deleted between query and update is fine; anything else is not.
			if status.Code(err) != codes.NotFound {
				return fmt.Errorf("failed to update entitlement: %w", err)
			}
		}
	}
	return nil
}

// SavePlan implements tiergate.PlanStore.
func (s *Storage) SavePlan(ctx context.Context, plan *tiergate.SprintPlan) error {
	if plan == nil || plan.UserID == "" {
		return fmt.Errorf("invalid plan")
	}

	data := map[string]interface{}{
		"user_id":     plan.UserID,
		"slot":        plan.Slot,
		"sprint_goal": plan.SprintGoal,
		"plan_data":   plan.Data,
		"saved_at":    time.Now().UTC(),
	}
	if plan.SprintNum != nil {
		data["sprint_num"] = *plan.SprintNum
	}
	if plan.StartDate != nil {
		data["start_date"] = plan.StartDate.UTC()
	}
	if plan.EndDate != nil {
		data["end_date"] = plan.EndDate.UTC()
	}
	if plan.LengthDays != nil {
		data["length_days"] = *plan.LengthDays
	}

	_, err := s.client.Collection(s.plansCollection).Doc(planDocID(plan.UserID, plan.Slot)).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ListPlans implements tiergate.PlanStore.
func (s *Storage) ListPlans(ctx context.Context, userID string) ([]*tiergate.SprintPlan, error) {
	snaps, err := s.client.Collection(s.plansCollection).
		Where("user_id", "==", userID).
		OrderBy("slot", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	plans := make([]*tiergate.SprintPlan, 0, len(snaps))
	for _, snap := range snaps {
		plans = append(plans, planFromDoc(snap.Data()))
	}
	return plans, nil
}

// DeletePlan implements tiergate.PlanStore.
func (s *Storage) DeletePlan(ctx context.Context, userID string, slot int) error {
	_, err := s.client.Collection(s.plansCollection).Doc(planDocID(userID, slot)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

func planDocID(userID string, slot int) string {
	return fmt.Sprintf("%s_%d", userID, slot)
}

func entitlementFromDoc(userID string, data map[string]interface{}) *tiergate.Entitlement {
	ent := &tiergate.Entitlement{
		UserID:                 userID,
		Tier:                   tiergate.Tier(getString(data, "tier")),
		ProviderCustomerID:     getString(data, "provider_customer_id"),
		ProviderSubscriptionID: getString(data, "provider_subscription_id"),
		UpdatedAt:              getTime(data, "updated_at"),
	}
	if end, ok := data["current_period_end"].(time.Time); ok && !end.IsZero() {
		ent.CurrentPeriodEnd = &end
	}
	return ent
}

func planFromDoc(data map[string]interface{}) *tiergate.SprintPlan {
	plan := &tiergate.SprintPlan{
		UserID:     getString(data, "user_id"),
		Slot:       int(getInt64(data, "slot")),
		SprintGoal: getString(data, "sprint_goal"),
		SavedAt:    getTime(data, "saved_at"),
	}
	if num, ok := data["sprint_num"].(int64); ok {
		n := int(num)
		plan.SprintNum = &n
	}
	if start, ok := data["start_date"].(time.Time); ok {
		plan.StartDate = &start
	}
	if end, ok := data["end_date"].(time.Time); ok {
		plan.EndDate = &end
	}
	if days, ok := data["length_days"].(int64); ok {
		d := int(days)
		plan.LengthDays = &d
	}
	if raw, ok := data["plan_data"].(map[string]interface{}); ok {
		plan.Data = raw
	}
	return plan
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getInt64(data map[string]interface{}, key string) int64 {
	if v, ok := data[key].(int64); ok {
		return v
	}
	return 0
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
