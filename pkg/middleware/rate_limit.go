package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/ratelimit"
)

// Allower is the limiter surface the rate-limit middleware needs.
// Implemented by ratelimit.Limiter.
type Allower interface {
	RuleFor(endpoint string, identity ratelimit.IdentityType) ratelimit.Rule
	Allow(ctx context.Context, endpoint, identity string, rule ratelimit.Rule, identityType ratelimit.IdentityType) (ratelimit.Result, error)
}

// RateLimit enforces per-identity sliding-window limits. Authenticated
// callers are keyed by user ID, anonymous ones by client IP. Limiter
// outages fail open so Redis downtime never blocks screening traffic.
func RateLimit(limiter Allower, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		identity := c.ClientIP()
		identityType := ratelimit.IdentityAnonymous
		if userID, ok := GetUserID(c); ok {
			identity = userID.String()
			identityType = ratelimit.IdentityAuthenticated
		}

		rule := limiter.RuleFor(endpoint, identityType)
		result, err := limiter.Allow(c.Request.Context(), endpoint, identity, rule, identityType)
		if err != nil {
			log.Warn("Rate limiter unavailable, admitting request",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			}
			log.Warn("Rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("identity", identity),
				zap.Duration("retry_after", result.RetryAfter),
			)
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if result.ResetAfter > 0 {
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(result.ResetAfter.Seconds()))))
	}
}
