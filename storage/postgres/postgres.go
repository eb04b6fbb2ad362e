// Package postgres provides a PostgreSQL implementation of the tiergate
// Store and PlanStore interfaces. Idempotency relies on the database's
// native upsert (INSERT .. ON CONFLICT DO UPDATE) and key-matched UPDATE
// semantics; no application-level locking is used.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// Schema is the reference DDL for the tables this adapter uses. Apply it
// with your migration tool of choice or via EnsureSchema in development.
const Schema = `
CREATE TABLE IF NOT EXISTS entitlements (
	user_id                  TEXT PRIMARY KEY,
	tier                     TEXT NOT NULL,
	provider_customer_id     TEXT,
	provider_subscription_id TEXT,
	current_period_end       TIMESTAMPTZ,
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitlements_provider_customer
	ON entitlements (provider_customer_id);

CREATE TABLE IF NOT EXISTS sprint_plans (
	user_id     TEXT NOT NULL,
	slot        SMALLINT NOT NULL,
	sprint_num  INTEGER,
	sprint_goal TEXT,
	start_date  DATE,
	end_date    DATE,
	length_days INTEGER,
	plan_data   JSONB NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, slot)
);
`

// Storage implements tiergate.Store and tiergate.PlanStore using PostgreSQL.
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter.
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// EnsureSchema creates the adapter's tables if they do not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// GetEntitlement implements tiergate.Store.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*tiergate.Entitlement, error) {
	var ent tiergate.Entitlement
	var customerID, subscriptionID *string
	var periodEnd *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, tier, provider_customer_id, provider_subscription_id, current_period_end, updated_at
			FROM entitlements WHERE user_id = $1`,
		userID).Scan(
		&ent.UserID,
		&ent.Tier,
		&customerID,
		&subscriptionID,
		&periodEnd,
		&ent.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, tiergate.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	if customerID != nil {
		ent.ProviderCustomerID = *customerID
	}
	if subscriptionID != nil {
		ent.ProviderSubscriptionID = *subscriptionID
	}
	ent.CurrentPeriodEnd = periodEnd
	return &ent, nil
}

// UpsertEntitlement implements tiergate.Store.
func (s *Storage) UpsertEntitlement(ctx context.Context, ent *tiergate.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return tiergate.ErrInvalidEntitlement
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO entitlements (user_id, tier, provider_customer_id, provider_subscription_id, current_period_end, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				tier = EXCLUDED.tier,
				provider_customer_id = EXCLUDED.provider_customer_id,
				provider_subscription_id = EXCLUDED.provider_subscription_id,
				current_period_end = EXCLUDED.current_period_end,
				updated_at = NOW()`,
		ent.UserID, ent.Tier, ent.ProviderCustomerID, ent.ProviderSubscriptionID, ent.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// RenewEntitlementByCustomer implements tiergate.Store. Matching zero
// rows is not an error; the renewal is simply for a customer we have
// never recorded.
func (s *Storage) RenewEntitlementByCustomer(ctx context.Context, customerID string, periodEnd time.Time) error {
	if customerID == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE entitlements
			SET tier = $1, current_period_end = $2, updated_at = NOW()
			WHERE provider_customer_id = $3`,
		tiergate.TierPro, periodEnd, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to renew entitlement: %w", err)
	}
	return nil
}

// DowngradeEntitlementByCustomer implements tiergate.Store. The provider
// ids are deliberately left in place as historical reference.
func (s *Storage) DowngradeEntitlementByCustomer(ctx context.Context, customerID string) error {
	if customerID == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE entitlements
			SET tier = $1, updated_at = NOW()
			WHERE provider_customer_id = $2`,
		tiergate.TierFree, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to downgrade entitlement: %w", err)
	}
	return nil
}

// SavePlan implements tiergate.PlanStore.
func (s *Storage) SavePlan(ctx context.Context, plan *tiergate.SprintPlan) error {
	if plan == nil || plan.UserID == "" {
		return fmt.Errorf("invalid plan")
	}

	data, err := json.Marshal(plan.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal plan data: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sprint_plans (user_id, slot, sprint_num, sprint_goal, start_date, end_date, length_days, plan_data, saved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (user_id, slot) DO UPDATE SET
				sprint_num = EXCLUDED.sprint_num,
				sprint_goal = EXCLUDED.sprint_goal,
				start_date = EXCLUDED.start_date,
				end_date = EXCLUDED.end_date,
				length_days = EXCLUDED.length_days,
				plan_data = EXCLUDED.plan_data,
				saved_at = NOW()`,
		plan.UserID, plan.Slot, plan.SprintNum, plan.SprintGoal,
		plan.StartDate, plan.EndDate, plan.LengthDays, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ListPlans implements tiergate.PlanStore.
func (s *Storage) ListPlans(ctx context.Context, userID string) ([]*tiergate.SprintPlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, slot, sprint_num, sprint_goal, start_date, end_date, length_days, plan_data, saved_at
			FROM sprint_plans WHERE user_id = $1 ORDER BY slot`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*tiergate.SprintPlan
	for rows.Next() {
		var plan tiergate.SprintPlan
		var goal *string
		var data []byte

		if err := rows.Scan(&plan.UserID, &plan.Slot, &plan.SprintNum, &goal,
			&plan.StartDate, &plan.EndDate, &plan.LengthDays, &data, &plan.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if goal != nil {
			plan.SprintGoal = *goal
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &plan.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal plan data: %w", err)
			}
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// DeletePlan implements tiergate.PlanStore.
func (s *Storage) DeletePlan(ctx context.Context, userID string, slot int) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sprint_plans WHERE user_id = $1 AND slot = $2`,
		userID, slot)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}
