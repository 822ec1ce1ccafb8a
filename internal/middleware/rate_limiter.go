package middleware

import (
	_ "embed"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var tokenBucket = redis.NewScript(luaScript)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// DefaultRateLimiterConfig returns default rate limiter settings
// 10 requests per second with burst capacity of 20
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   20,   // Can burst up to 20 requests
		RefillRate: 10.0, // Refills 10 tokens per second
	}
}

// RetryAfterSeconds is the wait for one token, rounded up.
func (c *RateLimiterConfig) RetryAfterSeconds() int {
	return int(math.Ceil(1.0 / c.RefillRate))
}

// RateLimiterMiddleware implements a token bucket per client IP and route
// using Redis + Lua. Redis errors let the request through.
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := IPRateLimiterKey(c.FullPath(), c.ClientIP())

		now := float64(time.Now().UnixMilli()) / 1000

		result, err := tokenBucket.Run(c.Request.Context(), redisClient, []string{key},
			config.Capacity,
			config.RefillRate,
			now,
		).Int64()
		if err != nil {
			logrus.WithError(err).Error("Failed to execute rate limiter Lua script")
			// Fail open: allow request if Redis fails
			c.Next()
			return
		}

		if result == 0 {
			retryAfter := config.RetryAfterSeconds()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// IPRateLimiterKey builds the bucket key for one client on one route.
func IPRateLimiterKey(route, ip string) string {
	return fmt.Sprintf("rate_limiter:ip:%s:%s", route, ip)
}
