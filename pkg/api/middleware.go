package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/brightlane/insightforge/pkg/authn"
	"github.com/brightlane/insightforge/pkg/ratelimit"
	"github.com/brightlane/insightforge/pkg/tenant"
	"github.com/gin-gonic/gin"
)

// securityHeaders sets standard security response headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// cors restricts cross-origin requests to an explicit allow-list — never a
// wildcard in production (enforced separately at config load time).
func cors(allowOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Writer.Header().Set("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth verifies the bearer access token and resolves
// (user_id, org_id, plan) into the request context for every downstream
// handler and store call to consume via tenant.FromContext.
func requireAuth(issuer *authn.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Request.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}

		claims, err := issuer.Verify(tokenString, authn.TokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}

		identity := tenant.Identity{UserID: claims.UserID, OrgID: claims.OrgID, Plan: claims.Plan}
		ctx := tenant.WithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// rateLimitBy enforces limiter against the key keyFunc derives from the
// request — per-IP for general/auth endpoints, per-authenticated-user once
// requireAuth has already run.
func rateLimitBy(limiter ratelimit.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		allowed, retryAfter := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			c.Writer.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited"})
			return
		}
		c.Next()
	}
}

// byClientIP keys a rate limiter on the request's remote address.
func byClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// byUser keys a rate limiter on the authenticated caller's user id — must
// run after requireAuth.
func byUser(c *gin.Context) string {
	identity, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		return c.ClientIP()
	}
	return identity.UserID
}
