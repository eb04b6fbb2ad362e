package memory

import (
	"context"
	"testing"
	"time"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

func TestStorage_GetUpsertEntitlement(t *testing.T) {
	storage := New()
	ctx := context.Background()

	_, err := storage.GetEntitlement(ctx, "user1")
	if err != tiergate.ErrEntitlementNotFound {
		t.Errorf("Expected ErrEntitlementNotFound, got %v", err)
	}

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	ent := &tiergate.Entitlement{
		UserID:                 "user1",
		Tier:                   tiergate.TierPro,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		CurrentPeriodEnd:       &periodEnd,
	}
	if err := storage.UpsertEntitlement(ctx, ent); err != nil {
		t.Fatalf("UpsertEntitlement failed: %v", err)
	}

	retrieved, err := storage.GetEntitlement(ctx, "user1")
	if err != nil {
		t.Fatalf("GetEntitlement failed: %v", err)
	}
	if retrieved.Tier != tiergate.TierPro {
		t.Errorf("Tier mismatch: got %s, want pro", retrieved.Tier)
	}
	if retrieved.ProviderCustomerID != "cus_1" {
		t.Errorf("Customer mismatch: got %s", retrieved.ProviderCustomerID)
	}
	if retrieved.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped on write")
	}
}

func TestStorage_UpsertEntitlement_Idempotent(t *testing.T) {
	storage := New()
	ctx := context.Background()

	ent := &tiergate.Entitlement{
		UserID:             "user1",
		Tier:               tiergate.TierPro,
		ProviderCustomerID: "cus_1",
	}
	if err := storage.UpsertEntitlement(ctx, ent); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if err := storage.UpsertEntitlement(ctx, ent); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	retrieved, err := storage.GetEntitlement(ctx, "user1")
	if err != nil {
		t.Fatalf("GetEntitlement failed: %v", err)
	}
	if retrieved.Tier != tiergate.TierPro || retrieved.ProviderCustomerID != "cus_1" {
		t.Errorf("Unexpected state after double upsert: %+v", retrieved)
	}
}

func TestStorage_RenewAndDowngradeByCustomer(t *testing.T) {
	storage := New()
	ctx := context.Background()

	ent := &tiergate.Entitlement{
		UserID:                 "user1",
		Tier:                   tiergate.TierPro,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
	}
	if err := storage.UpsertEntitlement(ctx, ent); err != nil {
		t.Fatalf("UpsertEntitlement failed: %v", err)
	}

	newEnd := time.Now().UTC().Add(60 * 24 * time.Hour).Truncate(time.Second)
	if err := storage.RenewEntitlementByCustomer(ctx, "cus_1", newEnd); err != nil {
		t.Fatalf("RenewEntitlementByCustomer failed: %v", err)
	}

	retrieved, _ := storage.GetEntitlement(ctx, "user1")
	if retrieved.CurrentPeriodEnd == nil || !retrieved.CurrentPeriodEnd.Equal(newEnd) {
		t.Errorf("Expected refreshed period end %v, got %v", newEnd, retrieved.CurrentPeriodEnd)
	}

	if err := storage.DowngradeEntitlementByCustomer(ctx, "cus_1"); err != nil {
		t.Fatalf("DowngradeEntitlementByCustomer failed: %v", err)
	}

	retrieved, _ = storage.GetEntitlement(ctx, "user1")
	if retrieved.Tier != tiergate.TierFree {
		t.Errorf("Expected free after downgrade, got %s", retrieved.Tier)
	}
	if retrieved.ProviderSubscriptionID != "sub_1" {
		t.Error("Downgrade must preserve historical subscription id")
	}
}

func TestStorage_UpdateByUnknownCustomer_NoError(t *testing.T) {
	storage := New()
	ctx := context.Background()

	if err := storage.RenewEntitlementByCustomer(ctx, "cus_unknown", time.Now()); err != nil {
		t.Errorf("Renew for unknown customer should be a no-op, got %v", err)
	}
	if err := storage.DowngradeEntitlementByCustomer(ctx, "cus_unknown"); err != nil {
		t.Errorf("Downgrade for unknown customer should be a no-op, got %v", err)
	}
}

func TestStorage_Plans(t *testing.T) {
	storage := New()
	ctx := context.Background()

	plan := &tiergate.SprintPlan{
		UserID:     "user1",
		Slot:       1,
		SprintGoal: "ship the billing layer",
		Data:       map[string]interface{}{"sprintGoal": "ship the billing layer"},
	}
	if err := storage.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}

	plans, err := storage.ListPlans(ctx, "user1")
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(plans) != 1 || plans[0].Slot != 1 {
		t.Fatalf("Expected one plan in slot 1, got %+v", plans)
	}

	// Saving the same slot again replaces, not appends
	plan.SprintGoal = "revised goal"
	if err := storage.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan overwrite failed: %v", err)
	}
	plans, _ = storage.ListPlans(ctx, "user1")
	if len(plans) != 1 || plans[0].SprintGoal != "revised goal" {
		t.Errorf("Expected overwritten plan, got %+v", plans)
	}

	if err := storage.DeletePlan(ctx, "user1", 1); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}
	plans, _ = storage.ListPlans(ctx, "user1")
	if len(plans) != 0 {
		t.Errorf("Expected no plans after delete, got %+v", plans)
	}
}
