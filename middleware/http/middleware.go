// Package http provides HTTP middleware for tier gating
package http

import (
	"context"
	"net/http"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// UserIDExtractor extracts the user ID from an HTTP request
// Return empty string if user is not authenticated
type UserIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Reader resolves user tiers (required)
	Reader *tiergate.Reader

	// GetUserID extracts user ID from request (required)
	GetUserID UserIDExtractor

	// LoginURL is where unauthenticated requests are redirected.
	// If empty, returns 401 Unauthorized instead.
	LoginURL string

	// UpgradeURL is where free-tier requests to pro content are
	// redirected. If empty, returns 403 Forbidden instead.
	UpgradeURL string

	// OnUnauthorized is called when user is not authenticated
	// If nil, redirects to LoginURL or returns 401
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnUpgradeRequired is called when a free-tier user hits gated content
	// If nil, redirects to UpgradeURL or returns 403
	OnUpgradeRequired func(w http.ResponseWriter, r *http.Request)
}

// RequireAuth creates an HTTP middleware that rejects unauthenticated
// requests. The resolved user ID is added to the request context.
func RequireAuth(config Config) func(http.Handler) http.Handler {
	if config.GetUserID == nil {
		panic("tiergate/http: Config.GetUserID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				config.unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequirePro creates an HTTP middleware that only lets pro-tier users
// through. Gating is read-only: tier resolution failures degrade to
// free and redirect to the upgrade page rather than erroring.
func RequirePro(config Config) func(http.Handler) http.Handler {
	if config.Reader == nil {
		panic("tiergate/http: Config.Reader is required")
	}
	if config.GetUserID == nil {
		panic("tiergate/http: Config.GetUserID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				config.unauthorized(w, r)
				return
			}

			if !config.Reader.IsPro(r.Context(), userID) {
				config.upgradeRequired(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// HandlerFunc creates a pro-gating middleware (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := RequirePro(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func (c Config) unauthorized(w http.ResponseWriter, r *http.Request) {
	if c.OnUnauthorized != nil {
		c.OnUnauthorized(w, r)
		return
	}
	if c.LoginURL != "" {
		http.Redirect(w, r, c.LoginURL, http.StatusFound)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func (c Config) upgradeRequired(w http.ResponseWriter, r *http.Request) {
	if c.OnUpgradeRequired != nil {
		c.OnUpgradeRequired(w, r)
		return
	}
	if c.UpgradeURL != "" {
		http.Redirect(w, r, c.UpgradeURL, http.StatusFound)
		return
	}
	http.Error(w, "Upgrade Required", http.StatusForbidden)
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "tiergate:userID"
)

// FromContext returns an UserIDExtractor that gets user ID from request context
func FromContext(key ContextKey) UserIDExtractor {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromCookie returns an UserIDExtractor that gets user ID from a cookie
func FromCookie(name string) UserIDExtractor {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

// WithUserID adds user ID to request context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
