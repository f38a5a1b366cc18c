package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter 递增 key 在窗口内的计数，超过 limit 时返回 true。
// 由 redisstate.RedisRoomState 实现。
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 返回一个按客户端 IP 固定窗口限流的 Gin 中间件。
// 限流存储出错时放行请求，只记录日志。
func RateLimit(limiter RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		panic("RateLimiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		limited, err := limiter.CheckRateLimit(c.Request.Context(), ip, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", ip).Error("RateLimit: limiter failed, allowing request")
			c.Next()
			return
		}
		if limited {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds()+0.5)))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
