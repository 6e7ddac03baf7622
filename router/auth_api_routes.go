package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvforge/internal/auth"
	"cvforge/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func setAuthRoutes(r gin.IRoutes, opts Options) {
	r.POST("/auth/register", registerHandler(opts))
	r.POST("/auth/login", loginHandler(opts))
	r.GET("/auth/me", requireBearerUser(opts), meHandler())
}

func registerHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "无效的参数"})
			return
		}
		// 邮箱按原样保存、精确匹配（大小写敏感），只去掉首尾空白。
		email := strings.TrimSpace(req.Email)
		if email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "邮箱或密码不能为空"})
			return
		}

		pwHash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		// 并发注册同一邮箱时由唯一约束兜底，这里统一折叠为“已被注册”。
		if _, err := opts.Store.CreateUser(c.Request.Context(), email, pwHash, store.TierFree, opts.InitialCredits); err != nil {
			if errors.Is(err, store.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"message": "邮箱已被注册"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "注册失败，请稍后重试"})
			return
		}

		token, err := opts.Tokens.Issue(email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "签发 token 失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
	}
}

func loginHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "无效的参数"})
			return
		}
		email := strings.TrimSpace(req.Email)
		if email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "邮箱或密码不能为空"})
			return
		}

		u, err := opts.Store.GetUserByEmail(c.Request.Context(), email)
		if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
			// 查无此人与密码错误对外不可区分。
			c.JSON(http.StatusUnauthorized, gin.H{"message": "邮箱或密码错误"})
			return
		}

		token, err := opts.Tokens.Issue(u.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "签发 token 失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"email":          u.Email,
			"credits":        u.Credits,
			"total_requests": u.TotalRequests,
		})
	}
}
