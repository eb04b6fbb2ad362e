// Package api provides HTTP endpoints for membership state: checkout
// session creation, a combined tier-plus-plans view, and sprint plan
// CRUD. Handlers are plain http.HandlerFunc methods so they mount on
// any router.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/scaledmoney/tiergate/pkg/billing"
	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

const (
	maxUserIDLen    = 255
	maxRequestBytes = 64 * 1024
	planSlotParam   = "slot"
)

// Handler provides HTTP endpoints for member state
type Handler struct {
	config Config
}

// CreateCheckout starts a payment flow and returns the hosted checkout
// URL. The caller is redirected there; the entitlement itself is only
// written later, when the provider delivers the completion webhook.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleError(w, r, fmt.Errorf("method not allowed"), http.StatusMethodNotAllowed)
		return
	}
	if h.config.Billing == nil {
		h.handleError(w, r, fmt.Errorf("billing not configured"), http.StatusServiceUnavailable)
		return
	}

	// An absent body is fine; the plan then falls back to the default.
	var req CheckoutRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.handleError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	userID := h.config.GetUserID(r)
	if userID == "" {
		userID = req.UserID
	}
	if userID == "" || len(userID) > maxUserIDLen {
		h.handleError(w, r, fmt.Errorf("userId is required"), http.StatusBadRequest)
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = h.config.DefaultPlan
	}

	url, err := h.config.Billing.CheckoutURL(r.Context(), userID, plan)
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotConfigured) {
			h.handleError(w, r, fmt.Errorf("unknown plan %q", plan), http.StatusBadRequest)
			return
		}
		h.config.Logger.Error("checkout session creation failed",
			tiergate.Field{Key: "user_id", Value: userID},
			tiergate.Field{Key: "error", Value: err.Error()},
		)
		h.handleError(w, r, fmt.Errorf("failed to create checkout session"), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

// GetMe returns the caller's membership view. Tier and plans come from
// independent stores, so they are fetched concurrently.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := h.config.GetUserID(r)
	if userID == "" || len(userID) > maxUserIDLen {
		h.handleError(w, r, fmt.Errorf("user ID not found"), http.StatusUnauthorized)
		return
	}

	var (
		ent   *tiergate.Entitlement
		plans []*tiergate.SprintPlan
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := h.config.Reader.Entitlement(gctx, userID)
		if err != nil && !errors.Is(err, tiergate.ErrEntitlementNotFound) {
			return err
		}
		ent = e
		return nil
	})
	if h.config.Plans != nil {
		g.Go(func() error {
			p, err := h.config.Plans.Load(gctx, userID)
			if err != nil {
				return err
			}
			plans = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.config.Logger.Error("membership lookup failed",
			tiergate.Field{Key: "user_id", Value: userID},
			tiergate.Field{Key: "error", Value: err.Error()},
		)
		h.handleError(w, r, fmt.Errorf("failed to load membership"), http.StatusInternalServerError)
		return
	}

	resp := MeResponse{
		UserID: userID,
		Tier:   string(tiergate.TierFree),
		Plans:  plans,
	}
	if ent != nil && ent.Tier != "" {
		resp.Tier = string(ent.Tier)
		resp.Pro = ent.Tier == tiergate.TierPro
		resp.CurrentPeriodEnd = ent.CurrentPeriodEnd
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetPlans returns all sprint plan slots for the caller.
func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requirePlans(w, r)
	if !ok {
		return
	}

	plans, err := h.config.Plans.Load(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to load plans"), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// SavePlan upserts a sprint plan into the slot named by ?slot=N.
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requirePlans(w, r)
	if !ok {
		return
	}

	slot, err := h.slotParam(r)
	if err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}

	var plan tiergate.SprintPlan
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&plan); err != nil {
		h.handleError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	plan.UserID = userID
	plan.Slot = slot

	if err := h.config.Plans.Save(r.Context(), &plan); err != nil {
		if errors.Is(err, tiergate.ErrInvalidSlot) {
			h.handleError(w, r, err, http.StatusBadRequest)
			return
		}
		h.handleError(w, r, fmt.Errorf("failed to save plan"), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// DeletePlan clears the slot named by ?slot=N.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requirePlans(w, r)
	if !ok {
		return
	}

	slot, err := h.slotParam(r)
	if err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := h.config.Plans.Delete(r.Context(), userID, slot); err != nil {
		if errors.Is(err, tiergate.ErrInvalidSlot) {
			h.handleError(w, r, err, http.StatusBadRequest)
			return
		}
		h.handleError(w, r, fmt.Errorf("failed to delete plan"), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// requirePlans performs the auth and configuration checks shared by the
// plan endpoints.
func (h *Handler) requirePlans(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.config.Plans == nil {
		h.handleError(w, r, fmt.Errorf("plans not configured"), http.StatusNotFound)
		return "", false
	}
	userID := h.config.GetUserID(r)
	if userID == "" || len(userID) > maxUserIDLen {
		h.handleError(w, r, fmt.Errorf("user ID not found"), http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func (h *Handler) slotParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get(planSlotParam)
	if raw == "" {
		return 0, fmt.Errorf("slot parameter is required")
	}
	slot, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", raw)
	}
	return slot, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response already committed; nothing useful to do
		_ = err
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	h.writeJSON(w, statusCode, map[string]string{"error": err.Error()})
}
