package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
	"github.com/scaledmoney/tiergate/storage/memory"
)

func proStore(t *testing.T, userID string) *memory.Storage {
	t.Helper()
	store := memory.New()
	err := store.UpsertEntitlement(context.Background(), &tiergate.Entitlement{
		UserID: userID,
		Tier:   tiergate.TierPro,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	return store
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireAuth(t *testing.T) {
	next, called := okHandler()
	handler := RequireAuth(Config{GetUserID: FromHeader("X-User-ID")})(next)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "U1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !*called {
		t.Errorf("Authenticated request should pass, got %d", rec.Code)
	}

	*called = false
	req = httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || *called {
		t.Errorf("Unauthenticated request should be rejected, got %d", rec.Code)
	}
}

func TestRequireAuth_RedirectsToLogin(t *testing.T) {
	next, called := okHandler()
	handler := RequireAuth(Config{
		GetUserID: FromHeader("X-User-ID"),
		LoginURL:  "/login",
	})(next)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound || *called {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
}

func TestRequirePro(t *testing.T) {
	store := proStore(t, "pro-user")
	reader := tiergate.NewReader(store, nil)

	next, called := okHandler()
	handler := RequirePro(Config{
		Reader:     reader,
		GetUserID:  FromHeader("X-User-ID"),
		UpgradeURL: "/upgrade",
	})(next)

	// Pro user passes
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "pro-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !*called {
		t.Errorf("Pro user should pass, got %d", rec.Code)
	}

	// Unknown user is free and gets sent to the upgrade page
	*called = false
	req = httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "free-user")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || *called {
		t.Fatalf("Free user should be redirected, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/upgrade" {
		t.Errorf("Expected redirect to /upgrade, got %q", loc)
	}
}

func TestRequirePro_NoUpgradeURL(t *testing.T) {
	reader := tiergate.NewReader(memory.New(), nil)
	next, _ := okHandler()
	handler := RequirePro(Config{Reader: reader, GetUserID: FromHeader("X-User-ID")})(next)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "free-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without upgrade URL, got %d", rec.Code)
	}
}

func TestRequirePro_AddsUserIDToContext(t *testing.T) {
	store := proStore(t, "pro-user")
	reader := tiergate.NewReader(store, nil)

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = FromContext(UserIDKey)(r)
	})
	handler := RequirePro(Config{Reader: reader, GetUserID: FromHeader("X-User-ID")})(next)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "pro-user")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUserID != "pro-user" {
		t.Errorf("Expected user id in context, got %q", gotUserID)
	}
}

func TestRequirePro_CustomHooks(t *testing.T) {
	reader := tiergate.NewReader(memory.New(), nil)
	next, _ := okHandler()

	upgradeCalled := false
	handler := RequirePro(Config{
		Reader:    reader,
		GetUserID: FromHeader("X-User-ID"),
		OnUpgradeRequired: func(w http.ResponseWriter, r *http.Request) {
			upgradeCalled = true
			w.WriteHeader(http.StatusPaymentRequired)
		},
	})(next)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("X-User-ID", "free-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !upgradeCalled || rec.Code != http.StatusPaymentRequired {
		t.Errorf("Custom hook not used, got %d", rec.Code)
	}
}

func TestFromCookie(t *testing.T) {
	extract := FromCookie("session_user")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_user", Value: "U1"})
	if got := extract(req); got != "U1" {
		t.Errorf("Expected U1, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := extract(req); got != "" {
		t.Errorf("Expected empty for missing cookie, got %q", got)
	}
}
