package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scaledmoney/tiergate/pkg/billing"
	"github.com/scaledmoney/tiergate/pkg/tiergate"
	"github.com/scaledmoney/tiergate/storage/memory"
)

// fakeBilling implements billing.Provider without talking to Stripe.
type fakeBilling struct {
	url string
	err error

	lastUserID string
	lastPlan   string
}

func (f *fakeBilling) Name() string { return "fake" }

func (f *fakeBilling) WebhookHandler() http.Handler { return http.NotFoundHandler() }

func (f *fakeBilling) CheckoutURL(ctx context.Context, userID, plan string) (string, error) {
	f.lastUserID = userID
	f.lastPlan = plan
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newTestHandler(t *testing.T, store *memory.Storage, billing *fakeBilling) *Handler {
	t.Helper()

	config := Config{
		Reader:    tiergate.NewReader(store, nil),
		Plans:     tiergate.NewPlans(store),
		GetUserID: FromHeader("X-User-ID"),
	}
	if billing != nil {
		config.Billing = billing
	}

	handler, err := NewHandler(config)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return handler
}

func TestNewHandler_Validation(t *testing.T) {
	if _, err := NewHandler(Config{GetUserID: FromHeader("X-User-ID")}); err == nil {
		t.Error("Expected error without reader")
	}
	if _, err := NewHandler(Config{Reader: tiergate.NewReader(memory.New(), nil)}); err == nil {
		t.Error("Expected error without GetUserID")
	}
}

func TestCreateCheckout(t *testing.T) {
	fake := &fakeBilling{url: "https://checkout.example.com/cs_1"}
	handler := newTestHandler(t, memory.New(), fake)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"plan":"pro_annual"}`))
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.CreateCheckout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.URL != fake.url {
		t.Errorf("Expected checkout URL, got %q", resp.URL)
	}
	if fake.lastUserID != "U1" || fake.lastPlan != "pro_annual" {
		t.Errorf("Billing called with (%q, %q)", fake.lastUserID, fake.lastPlan)
	}
}

func TestCreateCheckout_DefaultPlan(t *testing.T) {
	fake := &fakeBilling{url: "https://checkout.example.com/cs_1"}
	handler := newTestHandler(t, memory.New(), fake)

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.CreateCheckout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if fake.lastPlan != "pro_monthly" {
		t.Errorf("Expected default plan, got %q", fake.lastPlan)
	}
}

func TestCreateCheckout_UserIDFromBody(t *testing.T) {
	fake := &fakeBilling{url: "https://checkout.example.com/cs_1"}
	handler := newTestHandler(t, memory.New(), fake)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"userId":"U2"}`))
	rec := httptest.NewRecorder()
	handler.CreateCheckout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if fake.lastUserID != "U2" {
		t.Errorf("Expected body user id fallback, got %q", fake.lastUserID)
	}
}

func TestCreateCheckout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		billing    *fakeBilling
		userHeader string
		body       string
		method     string
		wantStatus int
	}{
		{"no user", &fakeBilling{}, "", "{}", http.MethodPost, http.StatusBadRequest},
		{"unknown plan", &fakeBilling{err: billing.ErrPlanNotConfigured}, "U1", `{"plan":"x"}`, http.MethodPost, http.StatusBadRequest},
		{"provider failure", &fakeBilling{err: errors.New("api down")}, "U1", "{}", http.MethodPost, http.StatusInternalServerError},
		{"wrong method", &fakeBilling{}, "U1", "", http.MethodGet, http.StatusMethodNotAllowed},
		{"malformed body", &fakeBilling{}, "U1", "{", http.MethodPost, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, memory.New(), tt.billing)

			req := httptest.NewRequest(tt.method, "/checkout", strings.NewReader(tt.body))
			if tt.userHeader != "" {
				req.Header.Set("X-User-ID", tt.userHeader)
			}
			rec := httptest.NewRecorder()
			handler.CreateCheckout(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateCheckout_NoBillingConfigured(t *testing.T) {
	handler := newTestHandler(t, memory.New(), nil)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{}"))
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.CreateCheckout(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestGetMe(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if err := store.UpsertEntitlement(ctx, &tiergate.Entitlement{
		UserID:           "U1",
		Tier:             tiergate.TierPro,
		CurrentPeriodEnd: &periodEnd,
	}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := store.SavePlan(ctx, &tiergate.SprintPlan{UserID: "U1", Slot: 1, SprintGoal: "ship beta"}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	handler := newTestHandler(t, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Tier != "pro" || !resp.Pro {
		t.Errorf("Expected pro membership, got %+v", resp)
	}
	if resp.CurrentPeriodEnd == nil || !resp.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("Expected period end %v, got %v", periodEnd, resp.CurrentPeriodEnd)
	}
	if len(resp.Plans) != tiergate.MaxPlanSlots {
		t.Fatalf("Expected %d plan slots, got %d", tiergate.MaxPlanSlots, len(resp.Plans))
	}
	if resp.Plans[0] != nil || resp.Plans[1] == nil || resp.Plans[1].SprintGoal != "ship beta" {
		t.Errorf("Plan slots wrong: %+v", resp.Plans)
	}
}

func TestGetMe_UnknownUserIsFree(t *testing.T) {
	handler := newTestHandler(t, memory.New(), nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "nobody")
	rec := httptest.NewRecorder()
	handler.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Tier != "free" || resp.Pro {
		t.Errorf("Expected free membership, got %+v", resp)
	}
}

func TestGetMe_Unauthenticated(t *testing.T) {
	handler := newTestHandler(t, memory.New(), nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	handler.GetMe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestPlanEndpoints(t *testing.T) {
	store := memory.New()
	handler := newTestHandler(t, store, nil)

	// Save into slot 1
	req := httptest.NewRequest(http.MethodPut, "/plans?slot=1",
		strings.NewReader(`{"sprintGoal":"ship beta","data":{"sprintGoal":"ship beta"}}`))
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.SavePlan(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Save: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// List shows it at its slot position
	req = httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set("X-User-ID", "U1")
	rec = httptest.NewRecorder()
	handler.GetPlans(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", rec.Code)
	}
	var listResp struct {
		Plans []*tiergate.SprintPlan `json:"plans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if len(listResp.Plans) != tiergate.MaxPlanSlots || listResp.Plans[1] == nil {
		t.Fatalf("Plan slots wrong: %+v", listResp.Plans)
	}
	if listResp.Plans[1].SprintGoal != "ship beta" {
		t.Errorf("Unexpected plan: %+v", listResp.Plans[1])
	}

	// Delete clears the slot
	req = httptest.NewRequest(http.MethodDelete, "/plans?slot=1", nil)
	req.Header.Set("X-User-ID", "U1")
	rec = httptest.NewRecorder()
	handler.DeletePlan(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d", rec.Code)
	}

	plans, err := store.ListPlans(context.Background(), "U1")
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("Expected no plans after delete, got %+v", plans)
	}
}

func TestSavePlan_SlotErrors(t *testing.T) {
	handler := newTestHandler(t, memory.New(), nil)

	tests := []struct {
		name string
		url  string
	}{
		{"missing slot", "/plans"},
		{"non-numeric slot", "/plans?slot=abc"},
		{"out of range slot", "/plans?slot=9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tt.url, strings.NewReader(`{}`))
			req.Header.Set("X-User-ID", "U1")
			rec := httptest.NewRecorder()
			handler.SavePlan(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}
