package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvforge/internal/auth"
	"cvforge/internal/store"
)

const ctxUserKey = "cvf_user"

// requireBearerUser 解析 Authorization: Bearer <token>，校验签名与有效期，
// 再按 subject 查出活跃用户。任何一步失败都返回同一句 401，不泄露失败原因。
func requireBearerUser(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractBearer(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c)
			return
		}
		subject, err := opts.Tokens.Validate(raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		u, err := opts.Store.GetUserByEmail(c.Request.Context(), subject)
		if err != nil || !u.Active() {
			abortUnauthorized(c)
			return
		}

		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), auth.Principal{
			UserID: u.ID,
			Email:  u.Email,
			Tier:   u.Tier,
		}))
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录或登录已失效"})
}

func extractBearer(v string) string {
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentUser(c *gin.Context) (store.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return store.User{}, false
	}
	u, ok := v.(store.User)
	return u, ok
}
