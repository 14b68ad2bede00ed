package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/ZanzyTHEbar/stevenson-profiler/internal/errors"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/monitoring"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware creates middleware for IP-based rate limiting.
// Limiter failures are logged and the request is let through.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			appErr := apperrors.NewRateLimitError(result.RetryAfter)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response(c.GetHeader(monitoring.RequestIDHeader)))
			return
		}

		c.Next()
	}
}

// HandleRateLimitStatus reports the caller's current allowance without
// consuming from it
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"period": "1 minute",
				},
			},
			"redis_enabled": rl.redisClient.IsEnabled(),
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
