// Package router 组装对外 HTTP 路由：认证、历史查询与三个受保护的生成端点。
// 受保护链路是显式的中间件流水线：解析身份 → 限流 → 配额 → 业务 handler，
// 每一段都是独立可测的普通函数。
package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func SetRouter(r *gin.Engine, opts Options) {
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	setAuthRoutes(r, opts)
	setHistoryRoutes(r, opts)
	setGenerateRoutes(r, opts)
}
