// Package server 组装 HTTP 路由、依赖与中间件，使 main 保持简单可读。
package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cvforge/internal/auth"
	"cvforge/internal/config"
	"cvforge/internal/gen"
	"cvforge/internal/limits"
	"cvforge/internal/quota"
	"cvforge/internal/store"
	"cvforge/internal/upstream"
	"cvforge/internal/version"
	"cvforge/router"
)

type AppOptions struct {
	Config  config.Config
	DB      *sql.DB
	Version version.BuildInfo
}

type App struct {
	cfg     config.Config
	db      *sql.DB
	store   *store.Store
	version version.BuildInfo
	engine  *gin.Engine
}

func NewApp(opts AppOptions) (*App, error) {
	st := store.New(opts.DB)
	st.SetDialect(store.Dialect(opts.Config.DB.Driver))

	tokens := auth.NewTokenService(opts.Config.Auth.JWTSecret, opts.Config.Auth.AccessTokenTTL)
	genSvc := gen.NewService(upstream.NewExecutor(opts.Config.Upstream))
	enforcer := quota.NewEnforcer(opts.Config.Limits.FreeTierRequestCap)

	if opts.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(AccessLog())
	engine.Use(MaxBodyBytes(opts.Config.Server.MaxBodyBytes))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": opts.Version.Version})
	})

	perMinute := opts.Config.Limits.GenerationPerMinute
	router.SetRouter(engine, router.Options{
		Store:           st,
		Tokens:          tokens,
		Quota:           enforcer,
		Gen:             genSvc,
		ResumeLimiter:   limits.NewRateLimiter(perMinute, time.Minute),
		ProjectLimiter:  limits.NewRateLimiter(perMinute, time.Minute),
		LinkedInLimiter: limits.NewRateLimiter(perMinute, time.Minute),
		InitialCredits:  opts.Config.Limits.InitialCredits,
	})

	return &App{
		cfg:     opts.Config,
		db:      opts.DB,
		store:   st,
		version: opts.Version,
		engine:  engine,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.engine
}
