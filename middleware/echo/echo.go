// Package echo provides Echo middleware for tier gating
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// UserIDContextKey is the Echo context key under which the resolved
// user ID is stored for downstream handlers.
const UserIDContextKey = "tiergate:userID"

// UserIDExtractor extracts the user ID from an Echo context
// Return empty string if user is not authenticated
type UserIDExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Reader resolves user tiers (required)
	Reader *tiergate.Reader

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// LoginURL is where unauthenticated requests are redirected.
	// If empty, returns 401 Unauthorized instead.
	LoginURL string

	// UpgradeURL is where free-tier requests are redirected.
	// If empty, returns 403 Forbidden instead.
	UpgradeURL string

	// OnUnauthorized is called when user is not authenticated
	// If nil, redirects to LoginURL or returns 401
	OnUnauthorized func(c echo.Context) error

	// OnUpgradeRequired is called when a free-tier user hits gated content
	// If nil, redirects to UpgradeURL or returns 403
	OnUpgradeRequired func(c echo.Context) error
}

// RequirePro creates an Echo middleware that only lets pro-tier users
// through
func RequirePro(cfg Config) echo.MiddlewareFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Reader == nil {
		panic("tiergate/echo: Config.Reader is required")
	}
	if cfg.GetUserID == nil {
		panic("tiergate/echo: Config.GetUserID is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := cfg.GetUserID(c)
			if userID == "" {
				return cfg.unauthorized(c)
			}

			if !cfg.Reader.IsPro(c.Request().Context(), userID) {
				return cfg.upgradeRequired(c)
			}

			c.Set(UserIDContextKey, userID)
			return next(c)
		}
	}
}

func (c Config) unauthorized(ctx echo.Context) error {
	if c.OnUnauthorized != nil {
		return c.OnUnauthorized(ctx)
	}
	if c.LoginURL != "" {
		return ctx.Redirect(http.StatusFound, c.LoginURL)
	}
	return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func (c Config) upgradeRequired(ctx echo.Context) error {
	if c.OnUpgradeRequired != nil {
		return c.OnUpgradeRequired(ctx)
	}
	if c.UpgradeURL != "" {
		return ctx.Redirect(http.StatusFound, c.UpgradeURL)
	}
	return ctx.JSON(http.StatusForbidden, map[string]string{"error": "Upgrade Required"})
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromEchoContext returns an UserIDExtractor that gets user ID from the
// Echo context, as set by an upstream auth middleware
func FromEchoContext(key string) UserIDExtractor {
	return func(c echo.Context) string {
		if userID, ok := c.Get(key).(string); ok {
			return userID
		}
		return ""
	}
}
