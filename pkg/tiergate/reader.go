package tiergate

import (
	"context"
	"errors"
)

// Reader answers "what tier is this user" for gating logic. It is the
// only component outside the reconciler that touches entitlement records,
// and it never fails open: any lookup problem degrades to TierFree.
type Reader struct {
	store  Store
	logger Logger
}

// NewReader creates a Reader over the given store. Logger may be nil.
func NewReader(store Store, logger Logger) *Reader {
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Reader{store: store, logger: logger}
}

// Tier returns the user's current tier. Missing caller, missing record and
// storage errors all resolve to TierFree; the caller cannot distinguish
// them and is not meant to.
func (r *Reader) Tier(ctx context.Context, userID string) Tier {
	if userID == "" {
		return TierFree
	}

	ent, err := r.store.GetEntitlement(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrEntitlementNotFound) {
			r.logger.Warn("entitlement lookup failed, defaulting to free",
				Field{Key: "user_id", Value: userID},
				Field{Key: "error", Value: err.Error()},
			)
		}
		return TierFree
	}
	if ent == nil || ent.Tier == "" {
		return TierFree
	}
	return ent.Tier
}

// Entitlement returns the full entitlement record, or
// ErrEntitlementNotFound. Unlike Tier it propagates storage errors, for
// callers that need to tell "free" from "unknown".
func (r *Reader) Entitlement(ctx context.Context, userID string) (*Entitlement, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return r.store.GetEntitlement(ctx, userID)
}

// IsPro reports whether the user is on the paid tier.
func (r *Reader) IsPro(ctx context.Context, userID string) bool {
	return r.Tier(ctx, userID) == TierPro
}
