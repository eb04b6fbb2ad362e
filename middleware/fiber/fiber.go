// Package fiber provides Fiber middleware for tier gating
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// UserIDContextKey is the Fiber locals key under which the resolved
// user ID is stored for downstream handlers.
const UserIDContextKey = "tiergate:userID"

// UserIDExtractor extracts the user ID from a Fiber context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *fiber.Ctx) string

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
	OnUnauthorized func(c *fiber.Ctx) error

	// OnUpgradeRequired is called when a free-tier user hits gated content
	// If nil, redirects to UpgradeURL or returns 403
	OnUpgradeRequired func(c *fiber.Ctx) error
}

// RequirePro creates a Fiber middleware that only lets pro-tier users
// through
func RequirePro(cfg Config) fiber.Handler {
	// Validate required configuration at startup (fail fast)
	if cfg.Reader == nil {
		panic("tiergate/fiber: Config.Reader is required")
	}
	if cfg.GetUserID == nil {
		panic("tiergate/fiber: Config.GetUserID is required")
	}

	return func(c *fiber.Ctx) error {
		userID := cfg.GetUserID(c)
		if userID == "" {
			return cfg.unauthorized(c)
		}

		// Fiber uses fasthttp, so c.UserContext() carries the
		// context.Context for storage calls
		if !cfg.Reader.IsPro(c.UserContext(), userID) {
			return cfg.upgradeRequired(c)
		}

		c.Locals(UserIDContextKey, userID)
		return c.Next()
	}
}

func (c Config) unauthorized(ctx *fiber.Ctx) error {
	if c.OnUnauthorized != nil {
		return c.OnUnauthorized(ctx)
	}
	if c.LoginURL != "" {
		return ctx.Redirect(c.LoginURL, fiber.StatusFound)
	}
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}

func (c Config) upgradeRequired(ctx *fiber.Ctx) error {
	if c.OnUpgradeRequired != nil {
		return c.OnUpgradeRequired(ctx)
	}
	if c.UpgradeURL != "" {
		return ctx.Redirect(c.UpgradeURL, fiber.StatusFound)
	}
	return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Upgrade Required"})
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromLocals returns an UserIDExtractor that gets user ID from Fiber
// locals, as set by an upstream auth middleware
func FromLocals(key string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		if userID, ok := c.Locals(key).(string); ok {
			return userID
		}
		return ""
	}
}
