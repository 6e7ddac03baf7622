package router

import (
	"cvforge/internal/auth"
	"cvforge/internal/gen"
	"cvforge/internal/limits"
	"cvforge/internal/quota"
	"cvforge/internal/store"
)

type Options struct {
	Store  *store.Store
	Tokens *auth.TokenService
	Quota  *quota.Enforcer
	Gen    *gen.Service

	// 每个生成端点独立一套窗口预算，互不挤占。
	ResumeLimiter   *limits.RateLimiter
	ProjectLimiter  *limits.RateLimiter
	LinkedInLimiter *limits.RateLimiter

	// InitialCredits 是注册即赠送的点数；nil 表示不限量。
	InitialCredits *int64
}
