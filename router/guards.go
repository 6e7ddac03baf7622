package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvforge/internal/limits"
	"cvforge/internal/quota"
)

// rateLimit 按身份限流；key 取已解析用户的邮箱，取不到时退化为来源 IP（不因
// 缺身份而报错，只是降级 key 的选择）。超限是独立于配额的一类失败，消息可区分。
func rateLimit(l *limits.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if u, ok := currentUser(c); ok {
			key = u.Email
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "请求过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}

// quotaGuard 做计费准入：余额先于档位上限，两类拒绝对外可区分、均可由用户自行纠正。
func quotaGuard(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		switch opts.Quota.Check(u) {
		case quota.CreditsExhausted:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "点数已用完"})
			return
		case quota.TierLimitReached:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "free 档请求数已达上限，升级后可继续使用"})
			return
		}
		c.Next()
	}
}
