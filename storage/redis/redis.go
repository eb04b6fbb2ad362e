// Package redis provides a Redis implementation of the tiergate Store
// and PlanStore interfaces. Entitlements live in a hash per user with a
// separate customer-id index key; HSET over an existing hash is the
// upsert primitive, so redelivered events converge to the same state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Storage implements tiergate.Store and tiergate.PlanStore using Redis.
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "tiergate:")
	KeyPrefix string

	// EntitlementTTL is the TTL for entitlement keys (0 = no expiration).
	// Entitlements are durable records; leave this at 0 unless Redis is
	// fronting another system of record.
	EntitlementTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{KeyPrefix: "tiergate:"}
}

// New creates a new Redis storage adapter. The client can be
// *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "tiergate:"
	}
	return &Storage{client: client, config: config}, nil
}

func (s *Storage) entitlementKey(userID string) string {
	return s.config.KeyPrefix + "ent:" + userID
}

func (s *Storage) customerKey(customerID string) string {
	return s.config.KeyPrefix + "cust:" + customerID
}

func (s *Storage) planKey(userID string, slot int) string {
	return fmt.Sprintf("%splan:%s:%d", s.config.KeyPrefix, userID, slot)
}

// GetEntitlement implements tiergate.Store.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*tiergate.Entitlement, error) {
	fields, err := s.client.HGetAll(ctx, s.entitlementKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	if len(fields) == 0 {
		return nil, tiergate.ErrEntitlementNotFound
	}

	ent := &tiergate.Entitlement{
		UserID:                 userID,
		Tier:                   tiergate.Tier(fields["tier"]),
		ProviderCustomerID:     fields["provider_customer_id"],
		ProviderSubscriptionID: fields["provider_subscription_id"],
	}
	if raw := fields["current_period_end"]; raw != "" {
		if end, err := time.Parse(time.RFC3339, raw); err == nil {
			ent.CurrentPeriodEnd = &end
		}
	}
	if raw := fields["updated_at"]; raw != "" {
		if updated, err := time.Parse(time.RFC3339, raw); err == nil {
			ent.UpdatedAt = updated
		}
	}
	return ent, nil
}

// UpsertEntitlement implements tiergate.Store. The customer index key is
// maintained alongside the hash so lifecycle events can find the user by
// provider customer id.
func (s *Storage) UpsertEntitlement(ctx context.Context, ent *tiergate.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return tiergate.ErrInvalidEntitlement
	}

	fields := map[string]interface{}{
		"tier":                     string(ent.Tier),
		"provider_customer_id":     ent.ProviderCustomerID,
		"provider_subscription_id": ent.ProviderSubscriptionID,
		"current_period_end":       formatTimePtr(ent.CurrentPeriodEnd),
		"updated_at":               time.Now().UTC().Format(time.RFC3339),
	}

	pipe := s.client.TxPipeline()
	key := s.entitlementKey(ent.UserID)
	pipe.HSet(ctx, key, fields)
	if s.config.EntitlementTTL > 0 {
		pipe.Expire(ctx, key, s.config.EntitlementTTL)
	}
	if ent.ProviderCustomerID != "" {
		pipe.Set(ctx, s.customerKey(ent.ProviderCustomerID), ent.UserID, s.config.EntitlementTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// RenewEntitlementByCustomer implements tiergate.Store.
func (s *Storage) RenewEntitlementByCustomer(ctx context.Context, customerID string, periodEnd time.Time) error {
	return s.updateByCustomer(ctx, customerID, map[string]interface{}{
		"tier":               string(tiergate.TierPro),
		"current_period_end": periodEnd.UTC().Format(time.RFC3339),
		"updated_at":         time.Now().UTC().Format(time.RFC3339),
	})
}

// DowngradeEntitlementByCustomer implements tiergate.Store.
func (s *Storage) DowngradeEntitlementByCustomer(ctx context.Context, customerID string) error {
	return s.updateByCustomer(ctx, customerID, map[string]interface{}{
		"tier":       string(tiergate.TierFree),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Storage) updateByCustomer(ctx context.Context, customerID string, fields map[string]interface{}) error {
	if customerID == "" {
		return nil
	}

	userID, err := s.client.Get(ctx, s.customerKey(customerID)).Result()
	if err == redis.Nil {
		// No entitlement recorded for this customer; nothing to update.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve customer index: %w", err)
	}

	if err := s.client.HSet(ctx, s.entitlementKey(userID), fields).Err(); err != nil {
		return fmt.Errorf("failed to update entitlement: %w", err)
	}
	return nil
}

// SavePlan implements tiergate.PlanStore.
func (s *Storage) SavePlan(ctx context.Context, plan *tiergate.SprintPlan) error {
	if plan == nil || plan.UserID == "" {
		return fmt.Errorf("invalid plan")
	}

	stored := *plan
	stored.SavedAt = time.Now().UTC()
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if err := s.client.Set(ctx, s.planKey(plan.UserID, plan.Slot), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ListPlans implements tiergate.PlanStore. The slot count is small and
// fixed, so plans are fetched by direct key rather than SCAN.
func (s *Storage) ListPlans(ctx context.Context, userID string) ([]*tiergate.SprintPlan, error) {
	var plans []*tiergate.SprintPlan
	for slot := 0; slot < tiergate.MaxPlanSlots; slot++ {
		data, err := s.client.Get(ctx, s.planKey(userID, slot)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get plan: %w", err)
		}
		var plan tiergate.SprintPlan
		if err := json.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		plans = append(plans, &plan)
	}
	return plans, nil
}

// DeletePlan implements tiergate.PlanStore.
func (s *Storage) DeletePlan(ctx context.Context, userID string, slot int) error {
	if err := s.client.Del(ctx, s.planKey(userID, slot)).Err(); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
