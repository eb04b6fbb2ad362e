// Package gin provides Gin middleware for tier gating
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scaledmoney/tiergate/pkg/tiergate"
)

// UserIDContextKey is the Gin context key under which the resolved
// user ID is stored for downstream handlers.
const UserIDContextKey = "tiergate:userID"

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gin.Context) string

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
	OnUnauthorized func(c *gin.Context)

	// OnUpgradeRequired is called when a free-tier user hits gated content
	// If nil, redirects to UpgradeURL or returns 403
	OnUpgradeRequired func(c *gin.Context)
}

// RequirePro creates a Gin middleware that only lets pro-tier users
// through
func RequirePro(cfg Config) gin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Reader == nil {
		panic("tiergate/gin: Config.Reader is required")
	}
	if cfg.GetUserID == nil {
		panic("tiergate/gin: Config.GetUserID is required")
	}

	return func(c *gin.Context) {
		userID := cfg.GetUserID(c)
		if userID == "" {
			cfg.unauthorized(c)
			return
		}

		if !cfg.Reader.IsPro(c.Request.Context(), userID) {
			cfg.upgradeRequired(c)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func (c Config) unauthorized(ctx *gin.Context) {
	if c.OnUnauthorized != nil {
		c.OnUnauthorized(ctx)
		ctx.Abort()
		return
	}
	if c.LoginURL != "" {
		ctx.Redirect(http.StatusFound, c.LoginURL)
		ctx.Abort()
		return
	}
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

func (c Config) upgradeRequired(ctx *gin.Context) {
	if c.OnUpgradeRequired != nil {
		c.OnUpgradeRequired(ctx)
		ctx.Abort()
		return
	}
	if c.UpgradeURL != "" {
		ctx.Redirect(http.StatusFound, c.UpgradeURL)
		ctx.Abort()
		return
	}
	ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Upgrade Required"})
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromGinContext returns an UserIDExtractor that gets user ID from the
// Gin context, as set by an upstream auth middleware
func FromGinContext(key string) UserIDExtractor {
	return func(c *gin.Context) string {
		if userID, ok := c.Get(key); ok {
			if s, ok := userID.(string); ok {
				return s
			}
		}
		return ""
	}
}
