// Package auth 提供鉴权的三件事：密码散列、签名 token 的签发/校验、请求主体的上下文传递。
package auth

import (
	"context"
)

// Principal 是一次已通过鉴权的请求主体（resolve 之后的活跃用户）。
type Principal struct {
	UserID int64
	Email  string
	Tier   string
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
